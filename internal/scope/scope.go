// Package scope compiles deployment applicability predicates written in CEL.
//
// A predicate sees a single variable, detection, holding the detection's
// classification fields:
//
//	detection.type == "TTP" && "Credential Dumping" in detection.analytic_story
package scope

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"security-content/internal/content"
)

// Predicate is a compiled scope expression.
type Predicate struct {
	Expr    string
	program cel.Program
}

// Compiler compiles and caches scope predicates. It is safe for concurrent use.
type Compiler struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]*Predicate
}

// NewCompiler creates a Compiler with the detection variable declared.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("detection", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Compiler{
		env:   env,
		cache: make(map[string]*Predicate),
	}, nil
}

// Compile compiles expr, returning a cached predicate when expr was seen before.
func (c *Compiler) Compile(expr string) (*Predicate, error) {
	c.mu.RLock()
	p, ok := c.cache[expr]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile scope %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("scope %q must return bool, got %s", expr, ast.OutputType())
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for scope %q: %w", expr, err)
	}

	p = &Predicate{Expr: expr, program: program}

	c.mu.Lock()
	c.cache[expr] = p
	c.mu.Unlock()

	return p, nil
}

// Match evaluates the predicate against a detection.
func (p *Predicate) Match(d *content.Detection) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		"detection": Activation(d),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate scope %q: %w", p.Expr, err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("scope %q returned %s, want bool", p.Expr, out.Type())
	}
	return bool(b), nil
}

// Activation returns the variables a scope expression can read from d.
// List fields are always non-nil so `in` never fails on a missing list.
func Activation(d *content.Detection) map[string]any {
	list := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	return map[string]any{
		"name":              d.Name,
		"id":                d.ID,
		"type":              d.Type,
		"author":            d.Author,
		"datamodel":         list(d.Datamodel),
		"analytic_story":    list(d.Tags.AnalyticStory),
		"mitre_attack_id":   list(d.Tags.MitreAttackID),
		"kill_chain_phases": list(d.Tags.KillChainPhases),
		"product":           list(d.Tags.Product),
		"security_domain":   d.Tags.SecurityDomain,
		"confidence":        int64(d.Tags.Confidence),
		"impact":            int64(d.Tags.Impact),
	}
}

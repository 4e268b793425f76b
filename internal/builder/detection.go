package builder

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"security-content/internal/attack"
	"security-content/internal/content"
	"security-content/internal/scope"
)

// ErrNoObject is returned by enrichment passes that run before SetObject.
var ErrNoObject = errors.New("builder: no detection set")

// DetectionBuilder builds one detection and enriches it pass by pass. It is not
// safe for concurrent use; use one builder per goroutine.
//
// Passes touch disjoint fields and may run in any order, with one dependency:
// AddDeployment must run before AddNesFields, and AddNesFields before
// AddAnnotations when the annotations should carry NES fields.
type DetectionBuilder struct {
	basic  *BasicBuilder
	logger *slog.Logger
	strict bool
	scopes *scope.Compiler

	detection *content.Detection
}

// NewDetectionBuilder creates a DetectionBuilder.
func NewDetectionBuilder(opts ...Option) *DetectionBuilder {
	s := newSettings(opts)
	return &DetectionBuilder{
		basic:  &BasicBuilder{loader: s.loader, logger: s.logger},
		logger: s.logger,
		strict: s.strict,
		scopes: s.scopes,
	}
}

// SetObject builds the base detection from the definition at path, discarding
// any previous enrichment. On failure the builder keeps its previous detection.
func (b *DetectionBuilder) SetObject(path string) error {
	d, err := b.basic.BuildDetection(path)
	if err != nil {
		return err
	}
	b.detection = d
	return nil
}

// SetDetection starts from an already built detection. The builder keeps a copy.
func (b *DetectionBuilder) SetDetection(d *content.Detection) {
	b.detection = d.Clone()
}

// GetObject returns a copy of the detection, or nil before SetObject.
func (b *DetectionBuilder) GetObject() *content.Detection {
	return b.detection.Clone()
}

// AddDeployment binds the deployment that applies to the detection. A single
// candidate binds unconditionally. When none of several candidates applies the
// current binding is kept.
func (b *DetectionBuilder) AddDeployment(deployments []*content.Deployment) error {
	d := b.detection
	if d == nil {
		return ErrNoObject
	}

	dep, err := b.selectDeployment(d, deployments)
	if err != nil {
		return err
	}
	if dep == nil {
		b.logger.Debug("no deployment applies", "detection", d.Name, "candidates", len(deployments))
		return nil
	}

	d.Deployment = dep
	b.logger.Debug("deployment bound", "detection", d.Name, "deployment", dep.Name)
	return nil
}

// AddNesFields copies the notable event fields of the bound deployment.
// Without a deployment (or one without a notable block) it does nothing.
func (b *DetectionBuilder) AddNesFields() {
	d := b.detection
	if d == nil {
		return
	}
	if d.Deployment == nil || d.Deployment.Notable == nil {
		b.logger.Debug("no notable deployment, skipping nes fields", "detection", d.Name)
		return
	}
	d.NesFields = slices.Clone(d.Deployment.Notable.NesFields)
}

// AddAnnotations derives the annotation map from the tags and NES fields.
func (b *DetectionBuilder) AddAnnotations() {
	if d := b.detection; d != nil {
		d.Annotations = deriveAnnotations(d.Tags, d.NesFields)
	}
}

// AddMappings derives the compliance framework mapping from the tags.
func (b *DetectionBuilder) AddMappings() {
	if d := b.detection; d != nil {
		d.Mappings = deriveMappings(d.Tags)
	}
}

// AddRBA derives the risk and threat objects from the tagged observables.
func (b *DetectionBuilder) AddRBA() {
	if d := b.detection; d != nil {
		d.Risk = deriveRisk(d.Tags)
	}
}

// AddPlaybook appends the playbooks that apply to the detection, in supplied order.
func (b *DetectionBuilder) AddPlaybook(playbooks []*content.Playbook) {
	d := b.detection
	if d == nil {
		return
	}
	for _, p := range playbooks {
		if p == nil || !content.ListsDetection(p.Tags.Detections, d.Name) {
			continue
		}
		if slices.ContainsFunc(d.Playbooks, func(have *content.Playbook) bool { return have.Name == p.Name }) {
			continue
		}
		d.Playbooks = append(d.Playbooks, p)
	}
}

// AddBaseline appends the baselines that apply to the detection, in supplied order.
func (b *DetectionBuilder) AddBaseline(baselines []*content.Baseline) {
	d := b.detection
	if d == nil {
		return
	}
	for _, bl := range baselines {
		if bl == nil || !content.ListsDetection(bl.Tags.Detections, d.Name) {
			continue
		}
		if slices.ContainsFunc(d.Baselines, func(have *content.Baseline) bool { return have.Name == bl.Name }) {
			continue
		}
		d.Baselines = append(d.Baselines, bl)
	}
}

// AddUnitTest replaces the detection's test wrapper with the supplied unit tests.
func (b *DetectionBuilder) AddUnitTest(tests []*content.UnitTest) {
	d := b.detection
	if d == nil {
		return
	}
	wrapper := &content.DetectionTest{Name: d.Name, Tests: []content.TestCase{}}
	for _, ut := range tests {
		if ut == nil {
			continue
		}
		wrapper.Tests = append(wrapper.Tests, ut.Tests...)
		wrapper.Sources = append(wrapper.Sources, ut.Name)
	}
	d.Test = wrapper
}

// AddMitreAttackEnrichment resolves the tagged technique ids. A nil lookup, or
// one that knows none of the ids, yields empty lists.
func (b *DetectionBuilder) AddMitreAttackEnrichment(lookup attack.Lookup) {
	d := b.detection
	if d == nil {
		return
	}
	techniques, tactics, groups := resolveAttack(d.Tags.MitreAttackID, lookup)
	d.Tags.MitreAttackTechniques = techniques
	d.Tags.MitreAttackTactics = tactics
	d.Tags.MitreAttackGroups = groups
}

// AddMacros binds the macros referenced by the search in first-appearance order,
// followed by the detection's filter macro. A default filter macro is generated
// when none is supplied. Unresolved references are logged, or returned as
// ReferenceErrors in strict mode, in which case the macros are left unchanged.
func (b *DetectionBuilder) AddMacros(macros []*content.Macro) error {
	d := b.detection
	if d == nil {
		return ErrNoObject
	}

	byName := make(map[string]*content.Macro, len(macros))
	for _, m := range macros {
		if m == nil {
			continue
		}
		if _, dup := byName[m.Name]; !dup {
			byName[m.Name] = m
		}
	}

	filterName := filterMacroName(d.Name)
	var (
		bound   []*content.Macro
		seen    = make(map[string]bool)
		refErrs []error
	)
	for _, ref := range macroReferences(d.Search) {
		if ref.name == filterName {
			continue
		}
		m, ok := byName[ref.key()]
		if !ok {
			m, ok = byName[ref.name]
		}
		if !ok {
			if b.strict {
				refErrs = append(refErrs, &content.ReferenceError{Kind: content.KindMacro, Name: ref.key(), From: d.Name})
			} else {
				b.logger.Warn("macro not found", "detection", d.Name, "macro", ref.key())
			}
			continue
		}
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		bound = append(bound, m)
	}
	if len(refErrs) > 0 {
		return errors.Join(refErrs...)
	}

	filter, ok := byName[filterName]
	if !ok {
		filter = content.NewFilterMacro(filterName)
	}
	d.Macros = append(bound, filter)
	return nil
}

// isFilterMacro reports whether name follows the filter macro naming convention.
func isFilterMacro(name string) bool {
	return strings.HasSuffix(name, "_filter")
}

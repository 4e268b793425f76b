// Package content defines the security content object model: detections and the
// objects they are enriched with (deployments, playbooks, baselines, macros, unit tests).
package content

import (
	"fmt"
	"strings"
)

// Kind identifies a security content object type.
type Kind string

const (
	KindDetection  Kind = "detection"
	KindDeployment Kind = "deployment"
	KindPlaybook   Kind = "playbook"
	KindBaseline   Kind = "baseline"
	KindMacro      Kind = "macro"
	KindUnitTest   Kind = "unit_test"
)

// Kinds lists every supported kind in build order: detections come last because
// their enrichment consumes the other kinds.
var Kinds = []Kind{
	KindDeployment,
	KindMacro,
	KindPlaybook,
	KindBaseline,
	KindUnitTest,
	KindDetection,
}

// IsValid checks if the kind is a supported value.
func (k Kind) IsValid() bool {
	switch k {
	case KindDetection, KindDeployment, KindPlaybook, KindBaseline, KindMacro, KindUnitTest:
		return true
	}
	return false
}

// Dir returns the conventional content directory holding definitions of this kind.
func (k Kind) Dir() string {
	switch k {
	case KindDetection:
		return "detections"
	case KindDeployment:
		return "deployments"
	case KindPlaybook:
		return "playbooks"
	case KindBaseline:
		return "baselines"
	case KindMacro:
		return "macros"
	case KindUnitTest:
		return "tests"
	}
	return ""
}

// ParseKind converts a kind name (singular or directory form) to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if s == string(k) || s == k.Dir() {
			return k, nil
		}
	}
	if s == "test" || s == "unit_tests" {
		return KindUnitTest, nil
	}
	return "", fmt.Errorf("unknown content kind: %q", s)
}

// NormalizeName converts an object name to its identifier form:
// lowercase with spaces, dashes, dots and slashes replaced by underscores.
func NormalizeName(name string) string {
	r := strings.NewReplacer(" ", "_", "-", "_", ".", "_", "/", "_")
	return r.Replace(strings.ToLower(name))
}

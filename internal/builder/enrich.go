package builder

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"security-content/internal/attack"
	"security-content/internal/content"
)

// Annotation keys copied from the detection tags.
const (
	annotationMitreAttack   = "mitre_attack"
	annotationKillChain     = "kill_chain_phases"
	annotationCIS20         = "cis20"
	annotationNIST          = "nist"
	annotationAnalyticStory = "analytic_story"
	annotationObservable    = "observable"
	annotationContext       = "context"
	annotationImpact        = "impact"
	annotationConfidence    = "confidence"
	annotationNesFields     = "nes_fields"
)

// deriveAnnotations builds the annotation map. List keys are only present when
// the source list is non-empty; impact and confidence are always present.
func deriveAnnotations(tags content.Tags, nesFields []string) map[string]any {
	out := make(map[string]any)

	lists := []struct {
		key    string
		values []string
	}{
		{annotationMitreAttack, tags.MitreAttackID},
		{annotationKillChain, tags.KillChainPhases},
		{annotationCIS20, tags.CIS20},
		{annotationNIST, tags.NIST},
		{annotationAnalyticStory, tags.AnalyticStory},
		{annotationContext, tags.Context},
		{annotationNesFields, nesFields},
	}
	for _, l := range lists {
		if len(l.values) > 0 {
			out[l.key] = slices.Clone(l.values)
		}
	}

	if len(tags.Observable) > 0 {
		out[annotationObservable] = tags.Clone().Observable
	}
	out[annotationImpact] = tags.Impact
	out[annotationConfidence] = tags.Confidence

	return out
}

// Compliance framework keys of the mappings map.
const (
	mappingCIS20     = "cis20"
	mappingKillChain = "kill_chain_phases"
	mappingMitre     = "mitre_attack"
	mappingNIST      = "nist"
)

// deriveMappings builds the compliance mapping from the four framework lists.
// Empty lists are omitted.
func deriveMappings(tags content.Tags) map[string][]string {
	out := make(map[string][]string, 4)
	for key, values := range map[string][]string{
		mappingCIS20:     tags.CIS20,
		mappingKillChain: tags.KillChainPhases,
		mappingMitre:     tags.MitreAttackID,
		mappingNIST:      tags.NIST,
	} {
		if len(values) > 0 {
			out[key] = slices.Clone(values)
		}
	}
	return out
}

// riskScore is the explicit tag when set, otherwise impact weighted by confidence.
func riskScore(tags content.Tags) int {
	if tags.RiskScore != nil {
		return *tags.RiskScore
	}
	return tags.Impact * tags.Confidence / 100
}

// riskObjectType maps an observable entity type to a risk object type.
func riskObjectType(observableType string) string {
	switch strings.ToLower(strings.TrimSpace(observableType)) {
	case "user", "username", "email", "email address":
		return "user"
	case "hostname", "ip address", "endpoint", "device", "system":
		return "system"
	}
	return "other"
}

// deriveRisk emits, in observable order, a risk object for every victim and a
// threat object for every parent or child process.
func deriveRisk(tags content.Tags) []content.RiskEntry {
	score := riskScore(tags)

	var out []content.RiskEntry
	for _, o := range tags.Observable {
		if o.HasRole(content.RoleVictim) {
			out = append(out, content.RiskEntry{
				RiskObjectType:  riskObjectType(o.Type),
				RiskObjectField: o.Name,
				RiskScore:       score,
			})
		}
		if o.HasRole(content.RoleParentProcess) || o.HasRole(content.RoleChildProcess) {
			out = append(out, content.RiskEntry{
				ThreatObjectField: o.Name,
				ThreatObjectType:  "process",
			})
		}
	}
	return out
}

// resolveAttack maps technique ids to display names, tactics and groups.
// Unknown ids contribute nothing. All results are non-nil and deduplicated.
func resolveAttack(ids []string, lookup attack.Lookup) (techniques, tactics, groups []string) {
	techniques, tactics, groups = []string{}, []string{}, []string{}
	if lookup == nil {
		return techniques, tactics, groups
	}
	for _, id := range ids {
		techniques = attack.AppendUnique(techniques, lookup.DisplayName(id))
		tactics = attack.AppendUnique(tactics, lookup.Tactics(id)...)
		groups = attack.AppendUnique(groups, lookup.Groups(id)...)
	}
	return techniques, tactics, groups
}

// macroToken matches `name` and `name(args)` macro invocations in a search.
var macroToken = regexp.MustCompile("`([A-Za-z0-9_]+)(?:\\(([^`]*)\\))?`")

type macroRef struct {
	name string
	args int
}

// key is the macro definition name for the reference: name(n) when called with arguments.
func (r macroRef) key() string {
	if r.args == 0 {
		return r.name
	}
	return r.name + "(" + strconv.Itoa(r.args) + ")"
}

// macroReferences returns the macro references in search in first-appearance
// order, without duplicates.
func macroReferences(search string) []macroRef {
	var refs []macroRef
	seen := make(map[macroRef]bool)
	for _, m := range macroToken.FindAllStringSubmatch(search, -1) {
		ref := macroRef{name: m[1]}
		if args := strings.TrimSpace(m[2]); args != "" {
			ref.args = countArgs(args)
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

// countArgs counts the comma separated arguments of a macro call. Commas inside
// quoted strings or nested parentheses do not separate arguments.
func countArgs(args string) int {
	n := 1
	depth := 0
	var quote rune
	escaped := false
	for _, r := range args {
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if r == '\\' {
				escaped = true
			} else if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			n++
		}
	}
	return n
}

// filterMacroName is the name of the per-detection filter macro.
func filterMacroName(detection string) string {
	return content.NormalizeName(detection) + "_filter"
}

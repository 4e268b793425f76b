package builder

import (
	"reflect"
	"testing"

	"security-content/internal/content"
)

func TestMacroReferences(t *testing.T) {
	tests := []struct {
		name   string
		search string
		want   []macroRef
	}{
		{"none", "| tstats count", nil},
		{"plain", "`a` | `b`", []macroRef{{name: "a"}, {name: "b"}}},
		{"duplicates", "`a` | `b` | `a`", []macroRef{{name: "a"}, {name: "b"}}},
		{"arguments", "`drop(Processes)` | `f(x, y)` | `g()`", []macroRef{{name: "drop", args: 1}, {name: "f", args: 2}, {name: "g"}}},
		{"not a macro", "`not a macro` | `ok`", []macroRef{{name: "ok"}}},
		{"quoted comma", "`m(\"a,b\")` | `n('x,y', z)`", []macroRef{{name: "m", args: 1}, {name: "n", args: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := macroReferences(tt.search); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("macroReferences() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountArgs(t *testing.T) {
	tests := map[string]int{
		"Processes":              1,
		"x, y":                   2,
		`"a,b"`:                  1,
		`'a,b', c`:               2,
		`"say \"hi, there\"", 2`: 2,
		"lower(x, y), z":         2,
		`"unterminated, quote`:   1,
	}
	for in, want := range tests {
		if got := countArgs(in); got != want {
			t.Errorf("countArgs(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestMacroRefKey(t *testing.T) {
	if got := (macroRef{name: "drop", args: 1}).key(); got != "drop(1)" {
		t.Errorf("key() = %q, want drop(1)", got)
	}
	if got := (macroRef{name: "drop"}).key(); got != "drop" {
		t.Errorf("key() = %q, want drop", got)
	}
}

func TestFilterMacroName(t *testing.T) {
	got := filterMacroName("Attempted Credential Dump From Registry via Reg exe")
	if want := "attempted_credential_dump_from_registry_via_reg_exe_filter"; got != want {
		t.Errorf("filterMacroName() = %q, want %q", got, want)
	}
}

func TestRiskObjectType(t *testing.T) {
	tests := map[string]string{
		"User":       "user",
		"Email":      "user",
		"Hostname":   "system",
		"IP Address": "system",
		"Process":    "other",
		"":           "other",
	}
	for in, want := range tests {
		if got := riskObjectType(in); got != want {
			t.Errorf("riskObjectType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRiskScore(t *testing.T) {
	explicit := 42
	tests := []struct {
		name string
		tags content.Tags
		want int
	}{
		{"derived", content.Tags{Impact: 90, Confidence: 100}, 90},
		{"derived rounds down", content.Tags{Impact: 70, Confidence: 50}, 35},
		{"explicit", content.Tags{Impact: 90, Confidence: 100, RiskScore: &explicit}, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := riskScore(tt.tags); got != tt.want {
				t.Errorf("riskScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDeriveRisk_VictimAndProcess(t *testing.T) {
	tags := content.Tags{
		Impact:     50,
		Confidence: 50,
		Observable: []content.Observable{
			{Name: "src_ip", Type: "IP Address", Role: []string{content.RoleAttacker}},
			{Name: "process", Type: "Process", Role: []string{content.RoleVictim, content.RoleChildProcess}},
		},
	}
	want := []content.RiskEntry{
		{RiskObjectType: "other", RiskObjectField: "process", RiskScore: 25},
		{ThreatObjectField: "process", ThreatObjectType: "process"},
	}
	if got := deriveRisk(tags); !reflect.DeepEqual(got, want) {
		t.Errorf("deriveRisk() = %+v, want %+v", got, want)
	}
}

func TestDeriveMappings_OnlyComplianceKeys(t *testing.T) {
	tags := content.Tags{
		MitreAttackID:   []string{"T1003"},
		NIST:            []string{"DE.CM"},
		AnalyticStory:   []string{"Credential Dumping"},
		Context:         []string{"Source:Endpoint"},
		KillChainPhases: nil,
	}
	got := deriveMappings(tags)
	want := map[string][]string{
		"mitre_attack": {"T1003"},
		"nist":         {"DE.CM"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("deriveMappings() = %v, want %v", got, want)
	}
}

func TestDeriveAnnotations_DoesNotAlias(t *testing.T) {
	tags := content.Tags{
		CIS20:      []string{"CIS 3"},
		Observable: []content.Observable{{Name: "user", Type: "User", Role: []string{content.RoleVictim}}},
	}
	ann := deriveAnnotations(tags, nil)

	ann["cis20"].([]string)[0] = "mutated"
	ann["observable"].([]content.Observable)[0].Role[0] = "mutated"

	if tags.CIS20[0] != "CIS 3" {
		t.Error("annotations alias tags.cis20")
	}
	if tags.Observable[0].Role[0] != content.RoleVictim {
		t.Error("annotations alias tags.observable roles")
	}
	if _, ok := ann["nes_fields"]; ok {
		t.Error("nes_fields present without NES fields")
	}
}

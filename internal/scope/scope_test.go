package scope

import (
	"testing"

	"security-content/internal/content"
)

func testDetection() *content.Detection {
	return &content.Detection{
		Name: "Attempted Credential Dump From Registry via Reg exe",
		Type: "TTP",
		Tags: content.Tags{
			AnalyticStory: []string{"Credential Dumping", "DarkSide Ransomware"},
			MitreAttackID: []string{"T1003.002", "T1003"},
			Impact:        90,
			Confidence:    100,
		},
	}
}

func TestPredicate_Match(t *testing.T) {
	c, err := NewCompiler()
	if err != nil {
		t.Fatalf("NewCompiler() error = %v", err)
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`detection.type == "TTP"`, true},
		{`detection.type == "Anomaly"`, false},
		{`"Credential Dumping" in detection.analytic_story`, true},
		{`detection.mitre_attack_id.exists(id, id.startsWith("T1003"))`, true},
		{`detection.impact * detection.confidence / 100 >= 90`, true},
		{`"Endpoint" in detection.datamodel`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := c.Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			got, err := p.Match(testDetection())
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompiler_Errors(t *testing.T) {
	c, err := NewCompiler()
	if err != nil {
		t.Fatal(err)
	}

	for _, expr := range []string{
		`detection.type +`,
		`"not a bool"`,
		`unknown_var == 1`,
	} {
		if _, err := c.Compile(expr); err == nil {
			t.Errorf("Compile(%q) should fail", expr)
		}
	}
}

func TestCompiler_Caches(t *testing.T) {
	c, err := NewCompiler()
	if err != nil {
		t.Fatal(err)
	}
	a, _ := c.Compile(`detection.type == "TTP"`)
	b, _ := c.Compile(`detection.type == "TTP"`)
	if a != b {
		t.Error("Compile() should return the cached predicate")
	}
}

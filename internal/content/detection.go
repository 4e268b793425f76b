package content

import (
	"encoding/json"
	"maps"
	"slices"
)

// Detection is a named threat-detection rule. The first block of fields is read
// from its definition file; the second block is only ever set by enrichment.
type Detection struct {
	Name                string   `yaml:"name" json:"name" validate:"required,max=256"`
	ID                  string   `yaml:"id" json:"id" validate:"omitempty,uuid"`
	Version             int      `yaml:"version" json:"version" validate:"gte=0"`
	Date                string   `yaml:"date" json:"date,omitempty"`
	Author              string   `yaml:"author" json:"author" validate:"required"`
	Type                string   `yaml:"type" json:"type,omitempty" validate:"omitempty,oneof=TTP Anomaly Hunting Baseline Investigation Correlation"`
	Datamodel           []string `yaml:"datamodel" json:"datamodel,omitempty"`
	Description         string   `yaml:"description" json:"description,omitempty"`
	Search              string   `yaml:"search" json:"search" validate:"required"`
	HowToImplement      string   `yaml:"how_to_implement" json:"how_to_implement,omitempty"`
	KnownFalsePositives string   `yaml:"known_false_positives" json:"known_false_positives,omitempty"`
	References          []string `yaml:"references" json:"references,omitempty"`
	Tags                Tags     `yaml:"tags" json:"tags"`

	Deployment  *Deployment         `yaml:"-" json:"deployment,omitempty"`
	NesFields   []string            `yaml:"-" json:"nes_fields,omitempty"`
	Annotations map[string]any      `yaml:"-" json:"annotations,omitempty"`
	Mappings    map[string][]string `yaml:"-" json:"mappings,omitempty"`
	Risk        []RiskEntry         `yaml:"-" json:"risk,omitempty"`
	Playbooks   []*Playbook         `yaml:"-" json:"playbooks,omitempty"`
	Baselines   []*Baseline         `yaml:"-" json:"baselines,omitempty"`
	Test        *DetectionTest      `yaml:"-" json:"test,omitempty"`
	Macros      []*Macro            `yaml:"-" json:"macros,omitempty"`
}

// Tags holds the structured classification block of a detection.
type Tags struct {
	AnalyticStory   []string     `yaml:"analytic_story" json:"analytic_story,omitempty"`
	Asset           string       `yaml:"asset_type" json:"asset_type,omitempty"`
	CIS20           []string     `yaml:"cis20" json:"cis20,omitempty"`
	Confidence      int          `yaml:"confidence" json:"confidence" validate:"gte=0,lte=100"`
	Context         []string     `yaml:"context" json:"context,omitempty"`
	Impact          int          `yaml:"impact" json:"impact" validate:"gte=0,lte=100"`
	KillChainPhases []string     `yaml:"kill_chain_phases" json:"kill_chain_phases,omitempty"`
	MitreAttackID   []string     `yaml:"mitre_attack_id" json:"mitre_attack_id,omitempty" validate:"dive,technique_id"`
	NIST            []string     `yaml:"nist" json:"nist,omitempty"`
	Observable      []Observable `yaml:"observable" json:"observable,omitempty" validate:"dive"`
	Product         []string     `yaml:"product" json:"product,omitempty"`
	RequiredFields  []string     `yaml:"required_fields" json:"required_fields,omitempty"`
	RiskScore       *int         `yaml:"risk_score" json:"risk_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	SecurityDomain  string       `yaml:"security_domain" json:"security_domain,omitempty"`

	MitreAttackTechniques []string `yaml:"-" json:"mitre_attack_techniques,omitempty"`
	MitreAttackTactics    []string `yaml:"-" json:"mitre_attack_tactics,omitempty"`
	MitreAttackGroups     []string `yaml:"-" json:"mitre_attack_groups,omitempty"`
}

// Observable is a field of the detection's results with a declared entity type and roles.
type Observable struct {
	Name string   `yaml:"name" json:"name" validate:"required"`
	Type string   `yaml:"type" json:"type" validate:"required"`
	Role []string `yaml:"role" json:"role" validate:"required,min=1,dive,observable_role"`
}

// Observable roles.
const (
	RoleVictim        = "Victim"
	RoleAttacker      = "Attacker"
	RoleParentProcess = "Parent Process"
	RoleChildProcess  = "Child Process"
	RoleTarget        = "Target"
	RoleOther         = "Other"
)

// ValidRole checks if r is a known observable role.
func ValidRole(r string) bool {
	switch r {
	case RoleVictim, RoleAttacker, RoleParentProcess, RoleChildProcess, RoleTarget, RoleOther:
		return true
	}
	return false
}

// HasRole reports whether the observable carries the given role.
func (o Observable) HasRole(role string) bool {
	return slices.Contains(o.Role, role)
}

// RiskEntry is either a risk object or a threat object derived from an observable.
type RiskEntry struct {
	RiskObjectType    string `json:"risk_object_type,omitempty"`
	RiskObjectField   string `json:"risk_object_field,omitempty"`
	RiskScore         int    `json:"risk_score,omitempty"`
	ThreatObjectField string `json:"threat_object_field,omitempty"`
	ThreatObjectType  string `json:"threat_object_type,omitempty"`
}

// IsThreatObject reports whether the entry describes a threat object.
func (r RiskEntry) IsThreatObject() bool {
	return r.ThreatObjectField != ""
}

// MarshalJSON always writes risk_score for a risk object, including a score of 0.
func (r RiskEntry) MarshalJSON() ([]byte, error) {
	type entry RiskEntry
	if r.IsThreatObject() {
		return json.Marshal(entry(r))
	}
	return json.Marshal(struct {
		entry
		RiskScore int `json:"risk_score"`
	}{entry(r), r.RiskScore})
}

// DetectionTest is the set of unit test cases bound to a detection.
type DetectionTest struct {
	Name    string     `json:"name"`
	Tests   []TestCase `json:"tests"`
	Sources []string   `json:"sources,omitempty"`
}

// Clone returns a copy of the detection that shares no slices or maps with d.
// Related objects bound by enrichment (deployment, playbooks, ...) are caller-owned
// and stay shared; only the slices holding them are copied.
func (d *Detection) Clone() *Detection {
	if d == nil {
		return nil
	}
	c := *d
	c.Datamodel = slices.Clone(d.Datamodel)
	c.References = slices.Clone(d.References)
	c.Tags = d.Tags.Clone()
	c.NesFields = slices.Clone(d.NesFields)
	c.Annotations = cloneAnnotations(d.Annotations)
	if d.Mappings != nil {
		c.Mappings = make(map[string][]string, len(d.Mappings))
		for k, v := range d.Mappings {
			c.Mappings[k] = slices.Clone(v)
		}
	}
	c.Risk = slices.Clone(d.Risk)
	c.Playbooks = slices.Clone(d.Playbooks)
	c.Baselines = slices.Clone(d.Baselines)
	c.Macros = slices.Clone(d.Macros)
	if d.Test != nil {
		t := *d.Test
		t.Tests = slices.Clone(d.Test.Tests)
		t.Sources = slices.Clone(d.Test.Sources)
		c.Test = &t
	}
	return &c
}

// Clone returns a deep copy of the tags.
func (t Tags) Clone() Tags {
	c := t
	c.AnalyticStory = slices.Clone(t.AnalyticStory)
	c.CIS20 = slices.Clone(t.CIS20)
	c.Context = slices.Clone(t.Context)
	c.KillChainPhases = slices.Clone(t.KillChainPhases)
	c.MitreAttackID = slices.Clone(t.MitreAttackID)
	c.NIST = slices.Clone(t.NIST)
	c.Product = slices.Clone(t.Product)
	c.RequiredFields = slices.Clone(t.RequiredFields)
	c.MitreAttackTechniques = slices.Clone(t.MitreAttackTechniques)
	c.MitreAttackTactics = slices.Clone(t.MitreAttackTactics)
	c.MitreAttackGroups = slices.Clone(t.MitreAttackGroups)
	if t.RiskScore != nil {
		score := *t.RiskScore
		c.RiskScore = &score
	}
	if t.Observable != nil {
		c.Observable = make([]Observable, len(t.Observable))
		for i, o := range t.Observable {
			c.Observable[i] = Observable{Name: o.Name, Type: o.Type, Role: slices.Clone(o.Role)}
		}
	}
	return c
}

func cloneAnnotations(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := maps.Clone(in)
	for k, v := range out {
		switch val := v.(type) {
		case []string:
			out[k] = slices.Clone(val)
		case []Observable:
			obs := make([]Observable, len(val))
			for i, o := range val {
				obs[i] = Observable{Name: o.Name, Type: o.Type, Role: slices.Clone(o.Role)}
			}
			out[k] = obs
		}
	}
	return out
}

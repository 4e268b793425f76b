package content

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// StringList is a list of strings that also accepts a single scalar in YAML,
// e.g. `analytic_story: all`.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("line %d: expected string or list of strings", node.Line)
}

// ContainsFold reports whether the list contains s, ignoring case.
func (l StringList) ContainsFold(s string) bool {
	for _, v := range l {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Deployment describes how and where a detection runs.
type Deployment struct {
	Name        string         `yaml:"name" json:"name" validate:"required"`
	ID          string         `yaml:"id" json:"id" validate:"omitempty,uuid"`
	Date        string         `yaml:"date" json:"date,omitempty"`
	Author      string         `yaml:"author" json:"author,omitempty"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Scheduling  Scheduling     `yaml:"scheduling" json:"scheduling"`
	Notable     *Notable       `yaml:"notable" json:"notable,omitempty"`
	RBA         *RBA           `yaml:"rba" json:"rba,omitempty"`
	Tags        DeploymentTags `yaml:"tags" json:"tags"`

	// Scope is an optional CEL expression selecting the detections this
	// deployment applies to. It takes precedence over Tags when set.
	Scope string `yaml:"scope" json:"scope,omitempty"`
}

// Scheduling holds the saved search schedule of a deployment.
type Scheduling struct {
	CronSchedule   string `yaml:"cron_schedule" json:"cron_schedule"`
	EarliestTime   string `yaml:"earliest_time" json:"earliest_time"`
	LatestTime     string `yaml:"latest_time" json:"latest_time"`
	ScheduleWindow string `yaml:"schedule_window" json:"schedule_window,omitempty"`
}

// Notable configures notable event creation.
type Notable struct {
	RuleTitle       string   `yaml:"rule_title" json:"rule_title,omitempty"`
	RuleDescription string   `yaml:"rule_description" json:"rule_description,omitempty"`
	NesFields       []string `yaml:"nes_fields" json:"nes_fields,omitempty"`
}

// RBA toggles risk-based alerting for a deployment.
type RBA struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DeploymentTags is the applicability scope of a deployment.
type DeploymentTags struct {
	AnalyticStory StringList `yaml:"analytic_story" json:"analytic_story,omitempty"`
	DetectionType string     `yaml:"detection_type" json:"detection_type,omitempty"`
}

// AppliesToAllStories reports whether the deployment is not restricted by story.
func (t DeploymentTags) AppliesToAllStories() bool {
	return len(t.AnalyticStory) == 0 || t.AnalyticStory.ContainsFold("all")
}

// Playbook is an automated response workflow.
type Playbook struct {
	Name           string       `yaml:"name" json:"name" validate:"required"`
	ID             string       `yaml:"id" json:"id" validate:"omitempty,uuid"`
	Version        int          `yaml:"version" json:"version" validate:"gte=0"`
	Date           string       `yaml:"date" json:"date,omitempty"`
	Author         string       `yaml:"author" json:"author,omitempty"`
	Type           string       `yaml:"type" json:"type,omitempty"`
	Description    string       `yaml:"description" json:"description,omitempty"`
	Playbook       string       `yaml:"playbook" json:"playbook,omitempty"`
	HowToImplement string       `yaml:"how_to_implement" json:"how_to_implement,omitempty"`
	References     []string     `yaml:"references" json:"references,omitempty"`
	AppList        []string     `yaml:"app_list" json:"app_list,omitempty"`
	Tags           PlaybookTags `yaml:"tags" json:"tags"`
}

// PlaybookTags classifies a playbook.
type PlaybookTags struct {
	Detections   []string `yaml:"detections" json:"detections,omitempty"`
	Platform     []string `yaml:"platform_tags" json:"platform_tags,omitempty"`
	PlaybookType string   `yaml:"playbook_type" json:"playbook_type,omitempty"`
	UseCases     []string `yaml:"use_cases" json:"use_cases,omitempty"`
	Defend       []string `yaml:"defend_technique_id" json:"defend_technique_id,omitempty"`
	Product      []string `yaml:"product" json:"product,omitempty"`
}

// Baseline is a reference search used by detections to reduce false positives.
type Baseline struct {
	Name                string       `yaml:"name" json:"name" validate:"required"`
	ID                  string       `yaml:"id" json:"id" validate:"omitempty,uuid"`
	Version             int          `yaml:"version" json:"version" validate:"gte=0"`
	Date                string       `yaml:"date" json:"date,omitempty"`
	Author              string       `yaml:"author" json:"author,omitempty"`
	Type                string       `yaml:"type" json:"type,omitempty"`
	Datamodel           []string     `yaml:"datamodel" json:"datamodel,omitempty"`
	Description         string       `yaml:"description" json:"description,omitempty"`
	Search              string       `yaml:"search" json:"search" validate:"required"`
	HowToImplement      string       `yaml:"how_to_implement" json:"how_to_implement,omitempty"`
	KnownFalsePositives string       `yaml:"known_false_positives" json:"known_false_positives,omitempty"`
	References          []string     `yaml:"references" json:"references,omitempty"`
	Tags                BaselineTags `yaml:"tags" json:"tags"`
}

// BaselineTags classifies a baseline.
type BaselineTags struct {
	AnalyticStory  []string `yaml:"analytic_story" json:"analytic_story,omitempty"`
	Detections     []string `yaml:"detections" json:"detections,omitempty"`
	Product        []string `yaml:"product" json:"product,omitempty"`
	RequiredFields []string `yaml:"required_fields" json:"required_fields,omitempty"`
	SecurityDomain string   `yaml:"security_domain" json:"security_domain,omitempty"`
}

// Macro is a named, reusable search fragment.
type Macro struct {
	Name        string   `yaml:"name" json:"name" validate:"required,macro_name"`
	Definition  string   `yaml:"definition" json:"definition"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Arguments   []string `yaml:"arguments" json:"arguments,omitempty"`
}

// DefaultFilterDefinition is the definition of a filter macro nobody has customized.
const DefaultFilterDefinition = "search *"

// DefaultFilterDescription describes a generated filter macro.
const DefaultFilterDescription = "Update this macro to limit the output results to filter out false positives."

// NewFilterMacro returns the default filter macro with the given name.
func NewFilterMacro(name string) *Macro {
	return &Macro{
		Name:        name,
		Definition:  DefaultFilterDefinition,
		Description: DefaultFilterDescription,
	}
}

// UnitTest groups the test cases that exercise one detection.
type UnitTest struct {
	Name  string     `yaml:"name" json:"name" validate:"required"`
	Tests []TestCase `yaml:"tests" json:"tests" validate:"required,min=1,dive"`
}

// TestCase runs a detection file against attack data and checks the pass condition.
type TestCase struct {
	Name          string       `yaml:"name" json:"name"`
	File          string       `yaml:"file" json:"file" validate:"required"`
	PassCondition string       `yaml:"pass_condition" json:"pass_condition,omitempty"`
	EarliestTime  string       `yaml:"earliest_time" json:"earliest_time,omitempty"`
	LatestTime    string       `yaml:"latest_time" json:"latest_time,omitempty"`
	AttackData    []AttackData `yaml:"attack_data" json:"attack_data,omitempty" validate:"dive"`
}

// AttackData is a replayable dataset used by a test case.
type AttackData struct {
	FileName        string `yaml:"file_name" json:"file_name,omitempty"`
	Data            string `yaml:"data" json:"data" validate:"required"`
	Source          string `yaml:"source" json:"source,omitempty"`
	Sourcetype      string `yaml:"sourcetype" json:"sourcetype,omitempty"`
	UpdateTimestamp bool   `yaml:"update_timestamp" json:"update_timestamp,omitempty"`
}

// ListsDetection reports whether names is empty or contains the detection name.
// Playbooks and baselines without a detection list apply to every detection.
func ListsDetection(names []string, detection string) bool {
	if len(names) == 0 {
		return true
	}
	return slices.ContainsFunc(names, func(n string) bool {
		return strings.EqualFold(strings.TrimSpace(n), detection)
	})
}

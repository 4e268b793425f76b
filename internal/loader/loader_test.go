package loader

import (
	"os"
	"path/filepath"
	"testing"

	"security-content/internal/content"
)

func TestParse_ValueKinds(t *testing.T) {
	def, err := Parse("d.yml", []byte(`
name: Detect Thing
version: 3
enabled: true
date: 2021-09-16
none: ~
tags:
  impact: 90
  observable:
  - name: user
    role: [Victim]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		path string
		want ValueKind
	}{
		{"name", KindString},
		{"version", KindNumber},
		{"enabled", KindBool},
		{"date", KindString},
		{"none", KindNull},
		{"tags", KindMap},
		{"tags.impact", KindNumber},
		{"tags.observable", KindSequence},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, ok := def.Fields.Get(tt.path)
			if !ok {
				t.Fatalf("Get(%q) missing", tt.path)
			}
			if v.Kind() != tt.want {
				t.Errorf("Kind() = %s, want %s", v.Kind(), tt.want)
			}
		})
	}

	if _, ok := def.Fields.Get("tags.missing"); ok {
		t.Error("Get(tags.missing) should be absent")
	}
	if _, ok := def.Fields.Get("name.sub"); ok {
		t.Error("Get through a scalar should be absent")
	}
	if def.Fields.Has("none") {
		t.Error("Has(none) should be false for a null value")
	}
	if n, _ := def.Fields.Get("tags.impact"); n.Interface() != float64(90) {
		t.Errorf("tags.impact = %#v, want 90", n)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "name: [unterminated"},
		{"empty", ""},
		{"sequence root", "- a\n- b\n"},
		{"duplicate key", "name: a\nname: b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yml", []byte(tt.data))
			if !content.IsParse(err) {
				t.Errorf("Parse() error = %v, want parse error", err)
			}
		})
	}
}

func TestParse_MergeKeys(t *testing.T) {
	def, err := Parse("m.yml", []byte(`
base: &base
  cron_schedule: 0 * * * *
  earliest_time: -70m@m
scheduling:
  <<: *base
  earliest_time: -24h
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if v, _ := def.Fields.Get("scheduling.cron_schedule"); v.Interface() != "0 * * * *" {
		t.Errorf("merged cron_schedule = %#v", v)
	}
	if v, _ := def.Fields.Get("scheduling.earliest_time"); v.Interface() != "-24h" {
		t.Errorf("explicit earliest_time = %#v, want -24h", v)
	}
}

func TestDefinition_Decode(t *testing.T) {
	def, err := Parse("m.yml", []byte("name: process_reg\ndefinition: search *\n"))
	if err != nil {
		t.Fatal(err)
	}
	var m content.Macro
	if err := def.Decode(&m); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.Name != "process_reg" || m.Definition != "search *" {
		t.Errorf("Decode() = %+v", m)
	}

	var wrong struct {
		Name []int `yaml:"name"`
	}
	if err := def.Decode(&wrong); !content.IsParse(err) {
		t.Errorf("Decode() error = %v, want parse error", err)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "macro.yml")
	if err := os.WriteFile(path, []byte("name: process_reg\ndefinition: search *\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if def.Path != path {
		t.Errorf("Path = %q, want %q", def.Path, path)
	}

	if _, err := Load(filepath.Join(dir, "missing.yml")); !content.IsNotFound(err) {
		t.Errorf("Load(missing) error = %v, want not found", err)
	}
	if _, err := Load(dir); !content.IsNotFound(err) {
		t.Errorf("Load(dir) error = %v, want not found", err)
	}
	if _, err := (FileLoader{MaxBytes: 8}).Load(path); !content.IsParse(err) {
		t.Errorf("Load(oversized) error = %v, want parse error", err)
	}
}

func TestValue_Accessors(t *testing.T) {
	v := Sequence(String("a"), Number(1), Bool(true), Map(RawFieldMap{"k": String("v")}))

	items, ok := v.Seq()
	if !ok || len(items) != 4 {
		t.Fatalf("Seq() = %v, %v", items, ok)
	}
	if s, ok := items[0].Str(); !ok || s != "a" {
		t.Errorf("Str() = %q, %v", s, ok)
	}
	if _, ok := items[0].Num(); ok {
		t.Error("Num() on a string should report false")
	}
	if b, ok := items[2].Boolean(); !ok || !b {
		t.Errorf("Boolean() = %v, %v", b, ok)
	}
	got := v.Interface().([]any)
	if got[3].(map[string]any)["k"] != "v" {
		t.Errorf("Interface() = %#v", got)
	}
}

package pipeline

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"security-content/internal/attack"
	"security-content/internal/content"
)

const contentRoot = "testdata/content"

func TestCollectFiles(t *testing.T) {
	files, err := CollectFiles(filepath.Join(contentRoot, "deployments"))
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	want := []string{
		filepath.Join(contentRoot, "deployments", "ESCU", "00_default_anomaly.yml"),
		filepath.Join(contentRoot, "deployments", "ESCU", "00_default_ttp.yml"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("CollectFiles() = %v, want %v", files, want)
	}

	if _, err := CollectFiles(filepath.Join(contentRoot, "missing")); err == nil {
		t.Error("CollectFiles() should fail for a missing directory")
	}
}

func TestLoadCorpus(t *testing.T) {
	corpus, failures, err := LoadCorpus(contentRoot)
	if err != nil {
		t.Fatalf("LoadCorpus() error = %v", err)
	}

	if len(corpus.Deployments) != 2 {
		t.Errorf("len(Deployments) = %d, want 2", len(corpus.Deployments))
	}
	if len(corpus.Macros) != 3 {
		t.Errorf("len(Macros) = %d, want 3", len(corpus.Macros))
	}
	if len(corpus.Playbooks) != 1 || len(corpus.Baselines) != 1 || len(corpus.UnitTests) != 1 {
		t.Errorf("related objects = %d playbooks, %d baselines, %d unit tests",
			len(corpus.Playbooks), len(corpus.Baselines), len(corpus.UnitTests))
	}
	if len(corpus.DetectionPaths) != 3 {
		t.Errorf("len(DetectionPaths) = %d, want 3", len(corpus.DetectionPaths))
	}

	if len(failures) != 1 {
		t.Fatalf("failures = %v, want only the broken macro", failures)
	}
	if failures[0].Kind != content.KindMacro || !content.IsValidation(failures[0]) {
		t.Errorf("failure = %v, want macro validation failure", failures[0])
	}
}

func TestLoadCorpus_MissingRoot(t *testing.T) {
	if _, _, err := LoadCorpus(filepath.Join(t.TempDir(), "nope")); !content.IsNotFound(err) {
		t.Errorf("LoadCorpus() error = %v, want not found", err)
	}
}

func TestCorpus_TestsFor(t *testing.T) {
	corpus := &Corpus{UnitTests: []*content.UnitTest{
		{Name: "Attempted Credential Dump From Registry via Reg exe Unit Test"},
		{Name: "other", Tests: []content.TestCase{{File: "endpoint/suspicious_reg_exe_query.yml"}}},
		{Name: "unrelated", Tests: []content.TestCase{{File: "endpoint/unrelated.yml"}}},
	}}

	if got := corpus.TestsFor("Attempted Credential Dump From Registry via Reg exe"); len(got) != 1 || got[0].Name != corpus.UnitTests[0].Name {
		t.Errorf("TestsFor() by name = %v", got)
	}
	if got := corpus.TestsFor("Suspicious Reg Exe Query"); len(got) != 1 || got[0].Name != "other" {
		t.Errorf("TestsFor() by file = %v", got)
	}
	if got := corpus.TestsFor("Nothing"); len(got) != 0 {
		t.Errorf("TestsFor() = %v, want none", got)
	}
}

func TestPipeline_Run(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("workers", func(t *testing.T) {
			p := New(Config{Workers: workers}, attack.NewProvider(nil))

			result, err := p.Run(context.Background(), contentRoot)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if len(result.Detections) != 2 {
				t.Fatalf("len(Detections) = %d, want 2", len(result.Detections))
			}
			// The broken macro and the detection without an author.
			if len(result.Failures) != 2 {
				t.Errorf("failures = %v, want 2", result.Failures)
			}

			d := result.Detections[0]
			if d.Name != "Attempted Credential Dump From Registry via Reg exe" {
				t.Fatalf("Detections[0] = %q, want path order", d.Name)
			}
			if d.Deployment == nil || d.Deployment.Name != "ESCU Default Configuration TTP" {
				t.Errorf("Deployment = %+v, want the TTP default", d.Deployment)
			}
			if !reflect.DeepEqual(d.NesFields, []string{"user", "dest"}) {
				t.Errorf("NesFields = %v", d.NesFields)
			}
			if len(d.Playbooks) != 1 || len(d.Baselines) != 1 {
				t.Errorf("Playbooks = %d, Baselines = %d, want 1 each", len(d.Playbooks), len(d.Baselines))
			}
			if d.Test == nil || len(d.Test.Tests) != 1 {
				t.Errorf("Test = %+v, want one case", d.Test)
			}
			wantMacros := []string{
				"security_content_summariesonly", "process_reg", "drop_dm_object_name(1)",
				"attempted_credential_dump_from_registry_via_reg_exe_filter",
			}
			var gotMacros []string
			for _, m := range d.Macros {
				gotMacros = append(gotMacros, m.Name)
			}
			if !reflect.DeepEqual(gotMacros, wantMacros) {
				t.Errorf("Macros = %v, want %v", gotMacros, wantMacros)
			}

			anomaly := result.Detections[1]
			if anomaly.Deployment == nil || anomaly.Deployment.Name != "ESCU Default Configuration Anomaly" {
				t.Errorf("Deployment = %+v, want the anomaly default", anomaly.Deployment)
			}
			if !reflect.DeepEqual(anomaly.Tags.MitreAttackTechniques, []string{"Modify Registry"}) {
				t.Errorf("MitreAttackTechniques = %v", anomaly.Tags.MitreAttackTechniques)
			}
			// Suspicious Reg Exe Query has no playbook in its tags list, and the
			// baseline lists only the credential dump detection.
			if len(anomaly.Playbooks) != 0 || len(anomaly.Baselines) != 0 {
				t.Errorf("Playbooks = %d, Baselines = %d, want none", len(anomaly.Playbooks), len(anomaly.Baselines))
			}

			if m := p.Metrics(); m.Built != 2 || m.Failed != 1 {
				t.Errorf("Metrics() = %+v, want 2 built, 1 failed", m)
			}
		})
	}
}

func TestPipeline_StrictMode(t *testing.T) {
	p := New(Config{Workers: 2, Strict: true}, nil)

	result, err := p.Run(context.Background(), contentRoot)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The anomaly detection is still built: its only macro is present and its
	// filter is generated.
	var refFailures int
	for _, f := range result.Failures {
		if content.IsReference(f) {
			refFailures++
		}
	}
	if refFailures != 0 {
		t.Errorf("reference failures = %d, want 0 with every macro present", refFailures)
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(DefaultConfig(), nil)
	if _, err := p.Run(ctx, contentRoot); err == nil {
		t.Error("Run() should fail when the context is cancelled")
	}
}

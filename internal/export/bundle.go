// Package export writes built detections as a JSON bundle to disk and,
// optionally, to S3-compatible object storage.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"security-content/internal/content"
	"security-content/internal/pipeline"
)

// Bundle is the build output.
type Bundle struct {
	ID          string               `json:"id"`
	Version     string               `json:"version"`
	GeneratedAt time.Time            `json:"generated_at"`
	Stats       Stats                `json:"stats"`
	Detections  []*content.Detection `json:"detections"`
	Failures    []FailureRecord      `json:"failures,omitempty"`
}

// Stats summarizes a bundle.
type Stats struct {
	Detections  int `json:"detections"`
	Deployments int `json:"deployments"`
	Macros      int `json:"macros"`
	Playbooks   int `json:"playbooks"`
	Baselines   int `json:"baselines"`
	UnitTests   int `json:"unit_tests"`
	Failures    int `json:"failures"`
}

// FailureRecord is a build failure as written to the bundle.
type FailureRecord struct {
	Kind  content.Kind `json:"kind"`
	Path  string       `json:"path"`
	Error string       `json:"error"`
}

// NewBundle assembles a bundle from a pipeline result.
func NewBundle(result *pipeline.Result, version string) *Bundle {
	b := &Bundle{
		ID:          uuid.NewString(),
		Version:     version,
		GeneratedAt: time.Now().UTC(),
		Detections:  result.Detections,
	}
	if b.Detections == nil {
		b.Detections = []*content.Detection{}
	}
	for _, f := range result.Failures {
		b.Failures = append(b.Failures, FailureRecord{Kind: f.Kind, Path: f.Path, Error: f.Err.Error()})
	}

	b.Stats = Stats{
		Detections: len(b.Detections),
		Failures:   len(b.Failures),
	}
	if c := result.Corpus; c != nil {
		b.Stats.Deployments = len(c.Deployments)
		b.Stats.Macros = len(c.Macros)
		b.Stats.Playbooks = len(c.Playbooks)
		b.Stats.Baselines = len(c.Baselines)
		b.Stats.UnitTests = len(c.UnitTests)
	}
	return b
}

// Encode writes the bundle as indented JSON.
func (b *Bundle) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("export: failed to encode bundle: %w", err)
	}
	return nil
}

// WriteFile writes the bundle to path, creating parent directories.
func (b *Bundle) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: failed to create bundle file: %w", err)
	}
	if err := b.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a bundle written by WriteFile.
func ReadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: failed to read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("export: failed to parse bundle %s: %w", path, err)
	}
	return &b, nil
}

// Package pipeline builds and enriches every detection of a content tree with a
// pool of workers.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"security-content/internal/attack"
	"security-content/internal/builder"
	"security-content/internal/content"
	"security-content/internal/scope"
)

// Config holds the pipeline configuration.
type Config struct {
	Workers int  `yaml:"workers"`
	Strict  bool `yaml:"strict"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Workers: 4,
	}
}

// Failure is an object that could not be built.
type Failure struct {
	Kind content.Kind
	Path string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Kind, f.Path, f.Err)
}

// Unwrap returns the build error.
func (f Failure) Unwrap() error { return f.Err }

// Result is the outcome of a pipeline run.
type Result struct {
	Corpus     *Corpus
	Detections []*content.Detection // In detection path order
	Failures   []Failure            // Sorted by path
	Duration   time.Duration
}

// Pipeline builds detections concurrently. Each worker owns its DetectionBuilder;
// the attack index and the scope compiler are shared.
type Pipeline struct {
	config   Config
	provider *attack.Provider
	logger   *slog.Logger
	opts     []builder.Option

	// Metrics
	built  uint64
	failed uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by the pipeline and its builders.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithBuilderOptions passes extra options to every builder, e.g. a custom loader.
func WithBuilderOptions(opts ...builder.Option) Option {
	return func(p *Pipeline) {
		p.opts = append(p.opts, opts...)
	}
}

// New creates a Pipeline. A nil provider uses the embedded ATT&CK dataset.
func New(cfg Config, provider *attack.Provider, opts ...Option) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if provider == nil {
		provider = attack.NewProvider(nil)
	}
	p := &Pipeline{
		config:   cfg,
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run loads the corpus under root and builds every detection. Individual
// failures are collected in the result; only an unreadable root, a scope
// compiler failure or cancellation abort the run.
func (p *Pipeline) Run(ctx context.Context, root string) (*Result, error) {
	start := time.Now()

	compiler, err := scope.NewCompiler()
	if err != nil {
		return nil, err
	}
	opts := append([]builder.Option{
		builder.WithLogger(p.logger),
		builder.WithStrict(p.config.Strict),
		builder.WithScopeCompiler(compiler),
	}, p.opts...)

	corpus, failures, err := LoadCorpus(root, opts...)
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		p.logger.Warn("failed to build object", "kind", f.Kind, "path", f.Path, "error", f.Err)
	}

	p.logger.Info("corpus loaded",
		"deployments", len(corpus.Deployments),
		"macros", len(corpus.Macros),
		"playbooks", len(corpus.Playbooks),
		"baselines", len(corpus.Baselines),
		"unit_tests", len(corpus.UnitTests),
		"detections", len(corpus.DetectionPaths),
	)

	lookup := p.provider.Lookup(ctx)

	detections := make([]*content.Detection, len(corpus.DetectionPaths))
	errs := make([]error, len(corpus.DetectionPaths))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			b := builder.NewDetectionBuilder(opts...)
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				d, err := p.buildDetection(b, corpus.DetectionPaths[idx], corpus, lookup)
				if err != nil {
					atomic.AddUint64(&p.failed, 1)
					errs[idx] = err
					p.logger.Warn("failed to build detection", "worker_id", id, "path", corpus.DetectionPaths[idx], "error", err)
					continue
				}
				atomic.AddUint64(&p.built, 1)
				detections[idx] = d
			}
		}(i)
	}

feed:
	for idx := range corpus.DetectionPaths {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			for rest := idx; rest < len(corpus.DetectionPaths); rest++ {
				errs[rest] = ctx.Err()
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build cancelled: %w", err)
	}

	result := &Result{Corpus: corpus, Failures: failures}
	for idx, d := range detections {
		if errs[idx] != nil {
			result.Failures = append(result.Failures, Failure{Kind: content.KindDetection, Path: corpus.DetectionPaths[idx], Err: errs[idx]})
			continue
		}
		result.Detections = append(result.Detections, d)
	}
	sort.SliceStable(result.Failures, func(i, j int) bool {
		return result.Failures[i].Path < result.Failures[j].Path
	})
	result.Duration = time.Since(start)

	p.logger.Info("build finished",
		"detections", len(result.Detections),
		"failures", len(result.Failures),
		"duration", result.Duration,
	)

	return result, nil
}

// buildDetection runs every enrichment pass in dependency order.
func (p *Pipeline) buildDetection(b *builder.DetectionBuilder, path string, corpus *Corpus, lookup attack.Lookup) (*content.Detection, error) {
	if err := b.SetObject(path); err != nil {
		return nil, err
	}
	if err := b.AddDeployment(corpus.Deployments); err != nil {
		return nil, err
	}
	b.AddNesFields()
	b.AddAnnotations()
	b.AddMappings()
	b.AddRBA()
	b.AddPlaybook(corpus.Playbooks)
	b.AddBaseline(corpus.Baselines)
	b.AddUnitTest(corpus.TestsFor(b.GetObject().Name))
	b.AddMitreAttackEnrichment(lookup)
	if err := b.AddMacros(corpus.Macros); err != nil {
		return nil, err
	}
	return b.GetObject(), nil
}

// Metrics returns pipeline statistics across runs.
func (p *Pipeline) Metrics() Metrics {
	return Metrics{
		Built:  atomic.LoadUint64(&p.built),
		Failed: atomic.LoadUint64(&p.failed),
	}
}

// Metrics holds pipeline statistics.
type Metrics struct {
	Built  uint64 `json:"built"`
	Failed uint64 `json:"failed"`
}

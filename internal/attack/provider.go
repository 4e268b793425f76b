package attack

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Provider loads the taxonomy index once and hands the cached instance to every
// caller. Construct one per process (or per test) and pass it to the builders
// that need it.
type Provider struct {
	source Source
	logger *slog.Logger

	once  sync.Once
	index *Index
	err   error
	loads atomic.Int32
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger sets the logger used to report the load.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a Provider backed by src. A nil src uses the embedded dataset.
func NewProvider(src Source, opts ...ProviderOption) *Provider {
	if src == nil {
		src = EmbeddedSource{}
	}
	p := &Provider{
		source: src,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the index, loading it on the first call. Concurrent first callers
// block until the single load finishes. A failed load is cached as well.
func (p *Provider) Get(ctx context.Context) (*Index, error) {
	p.once.Do(func() {
		p.loads.Add(1)
		start := time.Now()

		techniques, err := p.source.Load(ctx)
		if err != nil {
			p.err = err
			p.logger.Error("failed to load attack dataset", "source", p.source.Name(), "error", err)
			return
		}

		p.index = NewIndex(techniques)
		p.logger.Info("attack dataset loaded",
			"source", p.source.Name(),
			"techniques", p.index.Len(),
			"duration", time.Since(start),
		)
	})
	return p.index, p.err
}

// Lookup returns the index as a Lookup, falling back to an empty index when the
// load failed so enrichment degrades to empty results instead of aborting.
func (p *Provider) Lookup(ctx context.Context) Lookup {
	idx, err := p.Get(ctx)
	if err != nil || idx == nil {
		return Empty()
	}
	return idx
}

// Loads reports how many times the source was read. It never exceeds one.
func (p *Provider) Loads() int {
	return int(p.loads.Load())
}

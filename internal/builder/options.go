package builder

import (
	"log/slog"

	"security-content/internal/loader"
	"security-content/internal/scope"
)

// DefinitionLoader reads a definition file into a raw field map.
type DefinitionLoader interface {
	Load(path string) (*loader.Definition, error)
}

type settings struct {
	loader DefinitionLoader
	logger *slog.Logger
	strict bool
	scopes *scope.Compiler
}

// Option configures a builder.
type Option func(*settings)

// WithLoader replaces the filesystem loader.
func WithLoader(l DefinitionLoader) Option {
	return func(s *settings) {
		s.loader = l
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithStrict turns unresolved references into errors instead of warnings.
func WithStrict(strict bool) Option {
	return func(s *settings) {
		s.strict = strict
	}
}

// WithScopeCompiler shares a CEL scope compiler (and its cache) between builders.
func WithScopeCompiler(c *scope.Compiler) Option {
	return func(s *settings) {
		s.scopes = c
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		loader: loader.FileLoader{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Package builder turns content definition files into validated domain objects
// and enriches detections with their related content.
package builder

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"security-content/internal/content"
	"security-content/internal/loader"
)

// BasicBuilder builds the non-detection content kinds. It holds at most one
// built object: SetObject replaces it.
type BasicBuilder struct {
	loader DefinitionLoader
	logger *slog.Logger
	object any
}

// NewBasicBuilder creates a builder reading from the filesystem unless WithLoader is given.
func NewBasicBuilder(opts ...Option) *BasicBuilder {
	s := newSettings(opts)
	return &BasicBuilder{
		loader: s.loader,
		logger: s.logger,
	}
}

// Build loads, checks, decodes, defaults and validates the definition at path.
// It returns a pointer to the kind's struct, e.g. *content.Macro for KindMacro.
func (b *BasicBuilder) Build(path string, kind content.Kind) (any, error) {
	sch, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}

	def, err := b.loader.Load(path)
	if err != nil {
		return nil, err
	}

	obj, err := buildFrom(def, sch)
	if err != nil {
		var verr *content.ValidationError
		if errors.As(err, &verr) && verr.Path == "" {
			verr.Path = path
		}
		b.logger.Debug("build failed", "kind", kind, "path", path, "error", err)
		return nil, err
	}
	return obj, nil
}

func buildFrom(def *loader.Definition, sch schema) (any, error) {
	if err := sch.checkRaw(def.Fields); err != nil {
		return nil, err
	}

	obj := sch.newObj()
	if err := checkShape(sch.kind, def.Fields, reflect.TypeOf(obj).Elem()); err != nil {
		return nil, err
	}
	if err := def.Decode(obj); err != nil {
		return nil, err
	}
	if sch.defaults != nil {
		sch.defaults(obj)
	}
	if err := validateStruct(sch.kind, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// SetObject builds the definition at path and keeps the result. On failure the
// previously held object is left untouched.
func (b *BasicBuilder) SetObject(path string, kind content.Kind) error {
	obj, err := b.Build(path, kind)
	if err != nil {
		return err
	}
	b.object = obj
	return nil
}

// GetObject returns the object built by the last successful SetObject, or nil.
func (b *BasicBuilder) GetObject() any {
	return b.object
}

// BuildDeployment builds a deployment definition.
func (b *BasicBuilder) BuildDeployment(path string) (*content.Deployment, error) {
	return buildTyped[content.Deployment](b, path, content.KindDeployment)
}

// BuildPlaybook builds a playbook definition.
func (b *BasicBuilder) BuildPlaybook(path string) (*content.Playbook, error) {
	return buildTyped[content.Playbook](b, path, content.KindPlaybook)
}

// BuildBaseline builds a baseline definition.
func (b *BasicBuilder) BuildBaseline(path string) (*content.Baseline, error) {
	return buildTyped[content.Baseline](b, path, content.KindBaseline)
}

// BuildMacro builds a macro definition.
func (b *BasicBuilder) BuildMacro(path string) (*content.Macro, error) {
	return buildTyped[content.Macro](b, path, content.KindMacro)
}

// BuildUnitTest builds a unit test definition.
func (b *BasicBuilder) BuildUnitTest(path string) (*content.UnitTest, error) {
	return buildTyped[content.UnitTest](b, path, content.KindUnitTest)
}

// BuildDetection builds a detection definition without enriching it.
func (b *BasicBuilder) BuildDetection(path string) (*content.Detection, error) {
	return buildTyped[content.Detection](b, path, content.KindDetection)
}

func buildTyped[T any](b *BasicBuilder, path string, kind content.Kind) (*T, error) {
	obj, err := b.Build(path, kind)
	if err != nil {
		return nil, err
	}
	typed, ok := obj.(*T)
	if !ok {
		return nil, fmt.Errorf("builder: %s built %T", kind, obj)
	}
	return typed, nil
}

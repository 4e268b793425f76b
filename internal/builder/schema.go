package builder

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"security-content/internal/content"
	"security-content/internal/loader"
)

// techniquePattern matches ATT&CK technique and sub-technique ids, e.g. T1003 or T1003.002.
var techniquePattern = regexp.MustCompile(`^T\d{4}(\.\d{3})?$`)

// macroNamePattern matches macro names, optionally with an argument count: name or name(2).
var macroNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\(\d+\))?$`)

// idNamespace seeds deterministic ids for objects whose definition has none.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("security-content"))

// fieldSpec declares a raw field and the value kinds it may hold.
type fieldSpec struct {
	path  string
	kinds []loader.ValueKind
}

func field(path string, kinds ...loader.ValueKind) fieldSpec {
	return fieldSpec{path: path, kinds: kinds}
}

// schema is the per-kind contract enforced before a definition is decoded.
type schema struct {
	kind     content.Kind
	required []fieldSpec
	newObj   func() any
	defaults func(obj any)
}

const (
	vStr  = loader.KindString
	vNum  = loader.KindNumber
	vBool = loader.KindBool
	vSeq  = loader.KindSequence
	vMap  = loader.KindMap
)

var schemas = map[content.Kind]schema{
	content.KindDetection: {
		kind:     content.KindDetection,
		required: []fieldSpec{field("name", vStr), field("author", vStr), field("search", vStr)},
		newObj:   func() any { return &content.Detection{} },
		defaults: func(o any) {
			d := o.(*content.Detection)
			if d.ID == "" {
				d.ID = defaultID(content.KindDetection, d.Name)
			}
			if d.Version == 0 {
				d.Version = 1
			}
		},
	},
	content.KindDeployment: {
		kind:     content.KindDeployment,
		required: []fieldSpec{field("name", vStr)},
		newObj:   func() any { return &content.Deployment{} },
		defaults: func(o any) {
			d := o.(*content.Deployment)
			if d.ID == "" {
				d.ID = defaultID(content.KindDeployment, d.Name)
			}
			if d.Scheduling.CronSchedule == "" {
				d.Scheduling.CronSchedule = "0 * * * *"
			}
			if d.Scheduling.EarliestTime == "" {
				d.Scheduling.EarliestTime = "-70m@m"
			}
			if d.Scheduling.LatestTime == "" {
				d.Scheduling.LatestTime = "-10m@m"
			}
			if d.Scheduling.ScheduleWindow == "" {
				d.Scheduling.ScheduleWindow = "auto"
			}
		},
	},
	content.KindPlaybook: {
		kind:     content.KindPlaybook,
		required: []fieldSpec{field("name", vStr)},
		newObj:   func() any { return &content.Playbook{} },
		defaults: func(o any) {
			p := o.(*content.Playbook)
			if p.ID == "" {
				p.ID = defaultID(content.KindPlaybook, p.Name)
			}
			if p.Version == 0 {
				p.Version = 1
			}
		},
	},
	content.KindBaseline: {
		kind:     content.KindBaseline,
		required: []fieldSpec{field("name", vStr), field("search", vStr)},
		newObj:   func() any { return &content.Baseline{} },
		defaults: func(o any) {
			b := o.(*content.Baseline)
			if b.ID == "" {
				b.ID = defaultID(content.KindBaseline, b.Name)
			}
			if b.Version == 0 {
				b.Version = 1
			}
			if b.Type == "" {
				b.Type = "Baseline"
			}
		},
	},
	content.KindMacro: {
		kind:     content.KindMacro,
		required: []fieldSpec{field("name", vStr), field("definition", vStr)},
		newObj:   func() any { return &content.Macro{} },
		defaults: func(o any) {
			m := o.(*content.Macro)
			if m.Description == "" && isFilterMacro(m.Name) {
				m.Description = content.DefaultFilterDescription
			}
		},
	},
	content.KindUnitTest: {
		kind:     content.KindUnitTest,
		required: []fieldSpec{field("name", vStr), field("tests", vSeq)},
		newObj:   func() any { return &content.UnitTest{} },
		defaults: func(o any) {
			u := o.(*content.UnitTest)
			for i := range u.Tests {
				if u.Tests[i].Name == "" {
					u.Tests[i].Name = u.Name
				}
			}
		},
	},
}

func schemaFor(kind content.Kind) (schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return schema{}, content.NewValidationError(kind, "kind", "is not a supported content kind")
	}
	return s, nil
}

// checkRaw verifies required fields are present and hold an allowed value kind.
// The first offending field, in schema order, is reported.
func (s schema) checkRaw(fields loader.RawFieldMap) error {
	for _, f := range s.required {
		v, ok := fields.Get(f.path)
		if !ok || v.IsNull() {
			return content.NewValidationError(s.kind, f.path, "is required")
		}
		if err := s.checkKind(f, v); err != nil {
			return err
		}
		if text, isStr := v.Str(); isStr && strings.TrimSpace(text) == "" {
			return content.NewValidationError(s.kind, f.path, "is required")
		}
	}
	return nil
}

func (s schema) checkKind(f fieldSpec, v loader.Value) error {
	return expectKinds(s.kind, f.path, v, f.kinds...)
}

func expectKinds(kind content.Kind, path string, v loader.Value, kinds ...loader.ValueKind) error {
	for _, k := range kinds {
		if v.Kind() == k {
			return nil
		}
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return content.NewValidationError(kind, path,
		fmt.Sprintf("must be %s, got %s", strings.Join(names, " or "), v.Kind()))
}

func defaultID(kind content.Kind, name string) string {
	return uuid.NewSHA1(idNamespace, []byte(string(kind)+":"+name)).String()
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator. validator.Validate caches struct
// metadata and is safe for concurrent use.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()

		// Report yaml field names instead of Go field names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		v.RegisterValidation("observable_role", func(fl validator.FieldLevel) bool {
			return content.ValidRole(fl.Field().String())
		})
		v.RegisterValidation("technique_id", func(fl validator.FieldLevel) bool {
			return techniquePattern.MatchString(fl.Field().String())
		})
		v.RegisterValidation("macro_name", func(fl validator.FieldLevel) bool {
			return macroNamePattern.MatchString(fl.Field().String())
		})

		validate = v
	})
	return validate
}

// validateStruct runs tag validation and converts the first failure to a ValidationError.
func validateStruct(kind content.Kind, obj any) error {
	err := structValidator().Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}

	fe := verrs[0]
	fieldPath := fe.Namespace()
	if i := strings.Index(fieldPath, "."); i >= 0 {
		fieldPath = fieldPath[i+1:]
	}
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return content.NewValidationError(kind, fieldPath, reason)
}

package builder

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"security-content/internal/content"
	"security-content/internal/loader"
)

var stringListType = reflect.TypeOf(content.StringList(nil))

// checkShape walks the raw fields alongside the Go type they decode into and
// reports the first value of the wrong kind as a ValidationError, e.g. a scalar
// where a list is expected. Unknown keys are ignored, as the decoder ignores them.
func checkShape(kind content.Kind, fields loader.RawFieldMap, t reflect.Type) error {
	return checkStruct(kind, "", fields, t)
}

func checkStruct(kind content.Kind, prefix string, fields loader.RawFieldMap, t reflect.Type) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		v, ok := fields[name]
		if !ok {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if err := checkValue(kind, path, v, f.Type); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(kind content.Kind, path string, v loader.Value, t reflect.Type) error {
	if v.IsNull() {
		return nil
	}
	if t == stringListType {
		if items, ok := v.Seq(); ok {
			return checkElems(kind, path, items, t.Elem())
		}
		return expectKinds(kind, path, v, vStr, vNum, vBool)
	}

	switch t.Kind() {
	case reflect.Pointer:
		return checkValue(kind, path, v, t.Elem())
	case reflect.String:
		return expectKinds(kind, path, v, vStr, vNum, vBool)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if err := expectKinds(kind, path, v, vNum); err != nil {
			return err
		}
		if n, _ := v.Num(); n != math.Trunc(n) {
			return content.NewValidationError(kind, path, fmt.Sprintf("must be an integer, got %v", n))
		}
	case reflect.Bool:
		if s, ok := v.Str(); ok && isYAML11Bool(s) {
			return nil
		}
		return expectKinds(kind, path, v, vBool)
	case reflect.Slice:
		if err := expectKinds(kind, path, v, vSeq); err != nil {
			return err
		}
		items, _ := v.Seq()
		return checkElems(kind, path, items, t.Elem())
	case reflect.Struct:
		if err := expectKinds(kind, path, v, vMap); err != nil {
			return err
		}
		fields, _ := v.Fields()
		return checkStruct(kind, path, fields, t)
	}
	return nil
}

func checkElems(kind content.Kind, path string, items []loader.Value, elem reflect.Type) error {
	for i, item := range items {
		if err := checkValue(kind, fmt.Sprintf("%s[%d]", path, i), item, elem); err != nil {
			return err
		}
	}
	return nil
}

// isYAML11Bool reports whether s is a YAML 1.1 boolean word, which the decoder
// still accepts for bool fields.
func isYAML11Bool(s string) bool {
	switch s {
	case "y", "Y", "yes", "Yes", "YES", "on", "On", "ON",
		"n", "N", "no", "No", "NO", "off", "Off", "OFF":
		return true
	}
	return false
}

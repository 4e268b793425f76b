package loader

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindSequence
	KindMap
)

// String returns the kind name used in validation messages.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindSequence:
		return "sequence"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Value is a raw definition value: a string, number, bool, sequence or nested map.
// The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	seq  []Value
	m    RawFieldMap
}

// RawFieldMap maps field names to raw values.
type RawFieldMap map[string]Value

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Sequence returns a sequence Value.
func Sequence(items ...Value) Value { return Value{kind: KindSequence, seq: items} }

// Map returns a map Value.
func Map(m RawFieldMap) Value { return Value{kind: KindMap, m: m} }

// Kind returns the variant of v.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v holds no value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the number held by v.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Boolean returns the bool held by v.
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Seq returns the items of a sequence value. The returned slice must not be modified.
func (v Value) Seq() ([]Value, bool) {
	return v.seq, v.kind == KindSequence
}

// Fields returns the nested map of a map value. The returned map must not be modified.
func (v Value) Fields() (RawFieldMap, bool) {
	return v.m, v.kind == KindMap
}

// Interface converts v to plain Go values: string, float64, bool, []any, map[string]any or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		return v.m.Interface()
	}
	return nil
}

// GoString renders the value for debugging.
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindSequence:
		return fmt.Sprintf("%#v", v.seq)
	case KindMap:
		return fmt.Sprintf("%#v", map[string]Value(v.m))
	}
	return "null"
}

// Get returns the value stored under key, following dotted paths into nested maps,
// e.g. "notable.nes_fields".
func (m RawFieldMap) Get(path string) (Value, bool) {
	cur := m
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		val, ok := cur[path[start:i]]
		if !ok {
			return Value{}, false
		}
		if i == len(path) {
			return val, true
		}
		nested, ok := val.Fields()
		if !ok {
			return Value{}, false
		}
		cur = nested
		start = i + 1
	}
	return Value{}, false
}

// Has reports whether path is present and not null.
func (m RawFieldMap) Has(path string) bool {
	v, ok := m.Get(path)
	return ok && !v.IsNull()
}

// Keys returns the top-level keys in sorted order.
func (m RawFieldMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts the map to map[string]any.
func (m RawFieldMap) Interface() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

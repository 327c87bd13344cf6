package identity

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which variant a Value holds.
type Kind int

// Value kinds.
const (
	// KindAbsent is a missing or null value.
	KindAbsent Kind = iota
	// KindString is a string, possibly empty.
	KindString
	// KindMap is a nested mapping, possibly empty.
	KindMap
	// KindList is a sequence, possibly empty.
	KindList
	// KindScalar is any other JSON value (numbers, booleans). Scalars are never empty.
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	case KindScalar:
		return "scalar"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// A Value is a single field of an identity record.
//
// The zero Value is absent.
type Value struct {
	kind   Kind
	str    string
	m      Map
	list   []Value
	scalar any
}

// Map is a string-keyed mapping of values.
type Map map[string]Value

// Absent returns the absent value.
func Absent() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Object returns a mapping value. A nil map is an empty mapping, not an absent one.
func Object(m Map) Value {
	if m == nil {
		m = Map{}
	}
	return Value{kind: KindMap, m: m}
}

// List returns a sequence value.
func List(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindList, list: vs}
}

// Scalar returns a non-string leaf value such as a number or a boolean.
func Scalar(v any) Value {
	if v == nil {
		return Absent()
	}
	return Value{kind: KindScalar, scalar: v}
}

// OptionalString returns an absent value for nil, otherwise a string value.
func OptionalString(s *string) Value {
	if s == nil {
		return Absent()
	}
	return String(*s)
}

// FromAny converts a decoded JSON value (as produced by encoding/json into an
// any) into a Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Absent()
	case Value:
		return t
	case string:
		return String(t)
	case map[string]any:
		return Object(MapFromAny(t))
	case Claims:
		return Object(MapFromAny(t))
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = FromAny(e)
		}
		return List(vs...)
	case []string:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = String(e)
		}
		return List(vs...)
	default:
		return Scalar(t)
	}
}

// MapFromAny converts a decoded JSON object into a Map. A nil input yields a
// nil Map.
func MapFromAny(m map[string]any) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = FromAny(v)
	}
	return out
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is absent.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsEmpty reports whether v is absent, or is a string, mapping or sequence with no
// contents.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindAbsent:
		return true
	case KindString:
		return v.str == ""
	case KindMap:
		return len(v.m) == 0
	case KindList:
		return len(v.list) == 0
	case KindScalar:
		return false
	}
	panic(fmt.Sprintf("identity: unknown value kind %d", v.kind))
}

// Str returns the string held by v and whether v is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Map returns the mapping held by v and whether v is a mapping.
func (v Value) Map() (Map, bool) {
	return v.m, v.kind == KindMap
}

// Interface converts v back into plain Go values suitable for encoding/json.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindMap:
		return v.m.Interface()
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case KindScalar:
		return v.scalar
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// Interface converts m into a map[string]any.
func (m Map) Interface() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (m Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Interface())
}

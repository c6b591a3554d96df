package structstream

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variants of a best-effort parsed Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lowercase variant name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the tagged-union result of a best-effort parse. Unlike a plain
// interface{} tree it carries a Partial marker, so downstream code can tell a
// string that ended with a closing quote apart from one cut off mid-stream.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	Arr  []Value
	Obj  map[string]Value

	// Partial is true when the value was implicitly closed by the parser
	// rather than terminated by the input. Containers are partial when their
	// closing delimiter was missing; strings when the closing quote was.
	Partial bool
}

// Null is the zero Value.
var Null = Value{Kind: KindNull}

// Get returns the member for key on an object Value.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Null, false
	}
	member, ok := v.Obj[key]
	return member, ok
}

// Index returns the i-th element of an array Value.
func (v Value) Index(i int) (Value, bool) {
	if v.Kind != KindArray || i < 0 || i >= len(v.Arr) {
		return Null, false
	}
	return v.Arr[i], true
}

// StringValue returns the string payload, or "" for non-string kinds.
func (v Value) StringValue() string {
	if v.Kind != KindString {
		return ""
	}
	return v.Str
}

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Interface converts the Value into the json.Marshal-friendly tree of
// map[string]any / []any / float64 / string / bool / nil.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num
	case KindString:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Arr))
		for i, el := range v.Arr {
			out[i] = el.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Obj))
		for k, el := range v.Obj {
			out[k] = el.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON serializes the underlying value, dropping Partial markers.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Fingerprint returns a deterministic serialization used to detect whether a
// candidate item changed between two parses of the growing buffer. Object keys
// are emitted in sorted order so the result is stable across map iteration.
func (v Value) Fingerprint() string {
	var b strings.Builder
	v.fingerprint(&b)
	return b.String()
}

func (v Value) fingerprint(b *strings.Builder) {
	switch v.Kind {
	case KindNull:
		b.WriteString("n")
	case KindBool:
		if v.Bool {
			b.WriteString("t")
		} else {
			b.WriteString("f")
		}
	case KindNumber:
		b.WriteString(strconv.FormatFloat(v.Num, 'g', -1, 64))
	case KindString:
		b.WriteString(strconv.Quote(v.Str))
		if v.Partial {
			b.WriteString("~")
		}
	case KindArray:
		b.WriteByte('[')
		for i, el := range v.Arr {
			if i > 0 {
				b.WriteByte(',')
			}
			el.fingerprint(b)
		}
		b.WriteByte(']')
		if v.Partial {
			b.WriteString("~")
		}
	case KindObject:
		keys := make([]string, 0, len(v.Obj))
		for k := range v.Obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			member := v.Obj[k]
			member.fingerprint(b)
		}
		b.WriteByte('}')
		if v.Partial {
			b.WriteString("~")
		}
	}
}

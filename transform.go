package structstream

import "fmt"

// TransformFunc maps a raw extracted element to the shape the consumer wants
// (renaming fields, computing derived values). It must be pure: no I/O, no
// shared mutable state. Returning an error marks the item as a transform
// failure; the raw value is forwarded in its place so one malformed element
// never aborts an otherwise healthy stream.
type TransformFunc func(raw Value) (any, error)

// applyTransform runs fn over raw, converting panics into errors. A nil fn is
// the identity: the raw value's plain-JSON form is forwarded unchanged.
func applyTransform(fn TransformFunc, raw Value) (out any, err error) {
	if fn == nil {
		return raw.Interface(), nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = raw.Interface()
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	out, err = fn(raw)
	if err != nil {
		return raw.Interface(), err
	}
	return out, nil
}

package structstream

import "strings"

// Path names where the target array lives inside the streamed document, as a
// sequence of object keys walked from the root. It deliberately supports only
// object keys: the extraction target is always "the array at this location",
// never an individual index.
type Path struct {
	keys []string
}

// ParsePath splits a dot-separated key sequence ("data.potential_causes")
// into a Path. Empty segments are dropped, so "a..b" equals "a.b" and ""
// addresses the root value itself.
func ParsePath(raw string) Path {
	parts := strings.Split(raw, ".")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			keys = append(keys, part)
		}
	}
	return Path{keys: keys}
}

// Root starts a typed path builder. Use it instead of raw strings to get
// compile-time safety for extraction paths:
//
//	path := structstream.Root().Key("data").Key("potential_causes").Path()
func Root() PathBuilder {
	return PathBuilder{}
}

// PathBuilder accumulates object keys for a Path.
type PathBuilder struct {
	keys []string
}

// Key appends one object key to the path under construction.
func (b PathBuilder) Key(name string) PathBuilder {
	keys := make([]string, 0, len(b.keys)+1)
	keys = append(keys, b.keys...)
	keys = append(keys, name)
	return PathBuilder{keys: keys}
}

// Path finalizes the builder.
func (b PathBuilder) Path() Path {
	return Path{keys: b.keys}
}

// String renders the dot-separated form.
func (p Path) String() string {
	return strings.Join(p.keys, ".")
}

// Locate walks root key by key and returns the target array's elements.
// A missing intermediate key, a non-object along the way, or a terminal value
// that is not an array all report ok=false: while the model has not yet
// emitted that nesting level this is the normal transient state, not an error.
func (p Path) Locate(root Value) ([]Value, bool) {
	current := root
	for _, key := range p.keys {
		next, ok := current.Get(key)
		if !ok {
			return nil, false
		}
		current = next
	}
	if current.Kind != KindArray {
		return nil, false
	}
	return current.Arr, true
}

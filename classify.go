package structstream

// CompletenessPolicy configures when an array element is considered done.
// The zero value accepts any element as soon as a later sibling proves the
// model moved past it.
type CompletenessPolicy struct {
	// RequiredFields must all be present and non-empty/non-null on an element
	// before it can be classified complete.
	RequiredFields []string

	// MinFieldLengths guards free-text fields against being emitted the
	// moment their key appears but before the value finished streaming.
	// Keys are field names, values are minimum rune counts. This is the
	// latency/correctness tuning knob: raising a threshold trades one extra
	// fragment of latency for confidence the text is whole.
	MinFieldLengths map[string]int

	// IDField names the model-provided identifier field, if any. Used by the
	// sequencer when assigning item IDs; empty means always synthesize.
	IDField string
}

// classify decides whether the element at a given position will receive no
// further mutation as streaming continues.
//
// The heuristics encode a deliberate asymmetry: a false negative (holding a
// finished element for one more fragment) is cheap, a false positive
// (emitting a truncated element) is unrecoverable. The last visible element
// is therefore never complete before stream end, because only the appearance
// of its successor proves the model stopped appending to it.
func (p CompletenessPolicy) classify(item Value, lastFragment, lastIndex bool) bool {
	if lastFragment {
		// Final flush: nothing more will ever arrive.
		return true
	}
	if lastIndex {
		return false
	}
	return p.structurallyComplete(item)
}

func (p CompletenessPolicy) structurallyComplete(item Value) bool {
	if len(p.RequiredFields) == 0 && len(p.MinFieldLengths) == 0 {
		return true
	}
	if item.Kind != KindObject {
		return false
	}
	for _, field := range p.RequiredFields {
		v, ok := item.Get(field)
		if !ok || v.IsNull() {
			return false
		}
		if v.Kind == KindString && v.Str == "" {
			return false
		}
	}
	for field, min := range p.MinFieldLengths {
		v, ok := item.Get(field)
		if !ok {
			return false
		}
		if v.Kind == KindString && len([]rune(v.Str)) < min {
			return false
		}
	}
	return true
}

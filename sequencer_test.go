package structstream

import (
	"strings"
	"testing"
)

func TestSequencer_AtMostOnce(t *testing.T) {
	seq := newSequencer("")
	raw := mustParse(t, `{"name":"A"}`)

	first := seq.tryEmit(0, raw)
	if first == nil {
		t.Fatal("first offer must emit")
	}
	for i := 0; i < 5; i++ {
		if rec := seq.tryEmit(0, raw); rec != nil {
			t.Fatalf("repeat offer %d emitted again", i)
		}
	}
	if seq.count() != 1 {
		t.Fatalf("count=%d", seq.count())
	}
}

func TestSequencer_ModelProvidedID(t *testing.T) {
	seq := newSequencer("id")
	rec := seq.tryEmit(0, mustParse(t, `{"id":"cause-7","name":"A"}`))
	if rec.AssignedID != "cause-7" {
		t.Fatalf("AssignedID=%q", rec.AssignedID)
	}
}

func TestSequencer_SyntheticIDWhenMissingOrEmpty(t *testing.T) {
	seq := newSequencer("id")
	missing := seq.tryEmit(0, mustParse(t, `{"name":"A"}`))
	empty := seq.tryEmit(1, mustParse(t, `{"id":"","name":"B"}`))
	for _, rec := range []*EmittedItemRecord{missing, empty} {
		if rec.AssignedID == "" {
			t.Fatal("expected synthetic ID")
		}
	}
	if missing.AssignedID == empty.AssignedID {
		t.Fatal("synthetic IDs must differ per index")
	}
	if !strings.HasSuffix(missing.AssignedID, "-0") || !strings.HasSuffix(empty.AssignedID, "-1") {
		t.Fatalf("synthetic IDs should encode the index: %q %q", missing.AssignedID, empty.AssignedID)
	}
}

func TestSequencer_SyntheticIDsDifferAcrossSessions(t *testing.T) {
	a := newSequencer("").tryEmit(0, mustParse(t, `{"name":"A"}`))
	b := newSequencer("").tryEmit(0, mustParse(t, `{"name":"A"}`))
	if a.AssignedID == b.AssignedID {
		t.Fatal("concurrent sessions must not collide on synthetic IDs")
	}
}

func TestSequencer_RecordsInEmissionOrder(t *testing.T) {
	seq := newSequencer("")
	raw := mustParse(t, `{"name":"A"}`)
	for _, idx := range []int{0, 1, 2} {
		seq.tryEmit(idx, raw)
	}
	for i, rec := range seq.records {
		if rec.Index != i {
			t.Fatalf("records[%d].Index=%d", i, rec.Index)
		}
		if rec.EmittedAt.IsZero() {
			t.Fatalf("records[%d] missing EmittedAt", i)
		}
	}
}

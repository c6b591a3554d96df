package structstream

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EmittedItemRecord is the sequencer's ledger entry for one emitted index.
type EmittedItemRecord struct {
	Index      int
	AssignedID string
	EmittedAt  time.Time
}

// Item is a completed, transformed element forwarded to the consumer.
type Item struct {
	// Index is the element's 0-based position in the target array.
	Index int
	// ID is the model-provided identifier when present, else a synthetic one
	// unique across concurrent sessions.
	ID string
	// Value is the transformed payload (or the raw parsed value when no
	// transform is configured or the transform failed).
	Value any
	// Raw is the best-effort parsed element as extracted.
	Raw Value
}

// sequencer enforces the at-most-once, ascending-index emission contract.
// Classification runs over the whole visible array on every fragment, so the
// same index is offered repeatedly; the emitted set makes that idempotent.
// The mutex lets progress queries read the ledger while the session loop
// writes it.
type sequencer struct {
	session string
	idField string

	mu      sync.Mutex
	emitted map[int]struct{}
	records []EmittedItemRecord
}

func newSequencer(idField string) *sequencer {
	return &sequencer{
		session: uuid.NewString(),
		idField: idField,
		emitted: make(map[int]struct{}),
	}
}

// tryEmit returns the record for index on first offer and nil on every
// subsequent one.
func (s *sequencer) tryEmit(index int, raw Value) *EmittedItemRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.emitted[index]; done {
		return nil
	}
	s.emitted[index] = struct{}{}
	rec := EmittedItemRecord{
		Index:      index,
		AssignedID: s.assignID(index, raw),
		EmittedAt:  time.Now(),
	}
	s.records = append(s.records, rec)
	return &rec
}

func (s *sequencer) assignID(index int, raw Value) string {
	if s.idField != "" {
		if v, ok := raw.Get(s.idField); ok && v.Kind == KindString && v.Str != "" {
			return v.Str
		}
	}
	return fmt.Sprintf("%s-%d", s.session, index)
}

func (s *sequencer) seen(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, done := s.emitted[index]
	return done
}

func (s *sequencer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// snapshot returns a copy of the emission ledger in order.
func (s *sequencer) snapshot() []EmittedItemRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmittedItemRecord(nil), s.records...)
}

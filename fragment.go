package structstream

import (
	"strings"
	"sync"
)

// FragmentKind identifies the payload of one upstream fragment.
type FragmentKind string

const (
	// FragmentText carries a chunk of generated text. Chunk boundaries are
	// arbitrary and never aligned with JSON syntax.
	FragmentText FragmentKind = "text"
	// FragmentEnd is the upstream's single terminal success marker.
	FragmentEnd FragmentKind = "end"
	// FragmentError is the upstream's single terminal failure marker.
	FragmentError FragmentKind = "error"
	// FragmentKeepalive carries no text; it only proves the upstream is
	// alive, resetting the idle timeout.
	FragmentKeepalive FragmentKind = "keepalive"
)

// FragmentEvent is one unit of upstream data. Seq is monotonic and exists for
// diagnostics only; ordering is guaranteed by the source, not reconstructed
// from Seq.
type FragmentEvent struct {
	Seq  int
	Kind FragmentKind
	Text string
	Err  error
}

// Buffer accumulates raw fragment text for the lifetime of one streaming
// session. It only ever grows; nothing is discarded until the session ends.
// Methods are safe for concurrent use, so progress can be inspected while the
// session loop appends.
type Buffer struct {
	mu    sync.Mutex
	b     strings.Builder
	count int
}

// Append adds one fragment's text.
func (b *Buffer) Append(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b.WriteString(text)
	b.count++
}

// Snapshot returns the full accumulated text. The result is an immutable
// string, so a later Append never invalidates an earlier snapshot.
func (b *Buffer) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Len returns the accumulated byte length.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Len()
}

// Fragments returns how many fragments have been appended.
func (b *Buffer) Fragments() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

package structstream

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TransportError wraps an upstream delivery failure: a broken connection, a
// malformed wire record, or a source that ended without a terminal marker.
type TransportError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("structstream: %s: %v", e.Message, e.Cause)
	}
	return "structstream: " + e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e TransportError) Unwrap() error { return e.Cause }

// ValidationIssue represents a single field-level validation problem found by
// the end-of-stream strict pass. A nil Path indicates a root-level issue.
type ValidationIssue struct {
	Path    *string
	Message string
}

// ValidationError is the one truly fatal parse condition: the complete buffer
// at stream end failed strict decoding or schema validation. Items already
// emitted incrementally are not retracted; consumers should treat the session
// as degraded rather than unwinding delivered results.
type ValidationError struct {
	Message string
	Issues  []ValidationIssue
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "structstream: final document invalid: " + e.Message
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Path != nil {
			parts = append(parts, fmt.Sprintf("%s: %s", *issue.Path, issue.Message))
		} else {
			parts = append(parts, issue.Message)
		}
	}
	return "structstream: final document invalid: " + strings.Join(parts, "; ")
}

// StreamTimeoutKind identifies which configured timeout fired.
type StreamTimeoutKind string

const (
	StreamTimeoutTTFB  StreamTimeoutKind = "ttfb"
	StreamTimeoutIdle  StreamTimeoutKind = "idle"
	StreamTimeoutTotal StreamTimeoutKind = "total"
)

// StreamTimeoutError reports an expired stream timeout. It is treated exactly
// like an upstream transport failure.
type StreamTimeoutError struct {
	Kind    StreamTimeoutKind
	Timeout time.Duration
}

// Error implements the error interface.
func (e StreamTimeoutError) Error() string {
	return fmt.Sprintf("structstream: %s timeout after %s", e.Kind, e.Timeout)
}

// ErrCanceled is the terminal signal for caller-initiated cancellation. It is
// deliberately distinct from failure errors so consumers can tell "the user
// navigated away" apart from "the stream broke".
var ErrCanceled = errors.New("structstream: session canceled")

// IsCanceled reports whether err is the cancellation signal.
func IsCanceled(err error) bool { return errors.Is(err, ErrCanceled) }

package structstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
)

// State is the session lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateStreaming  State = "streaming"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateCanceled   State = "canceled"
)

// Config wires the extraction target, completeness policy, transformation and
// consumer callbacks for a streaming session.
type Config struct {
	// TargetPath is the dot-separated location of the array to extract,
	// e.g. "data.potential_causes". Required.
	TargetPath string

	// Completeness configures when an element counts as done.
	Completeness CompletenessPolicy

	// Transform maps raw elements to the consumer's shape. Nil forwards the
	// raw parsed value.
	Transform TransformFunc

	// Schema, when set, is compiled and used for the strict end-of-stream
	// validation pass. Without it the final pass only requires the buffer to
	// decode as JSON.
	Schema json.RawMessage

	// Timeouts bound the upstream stream. Expiry is treated as a transport
	// failure.
	Timeouts StreamTimeouts

	// Telemetry receives observability callbacks.
	Telemetry TelemetryHooks

	// OnItem is invoked synchronously for each completed item, in strictly
	// ascending index order. The session does not pull the next fragment
	// until it returns, which applies natural backpressure upstream.
	OnItem func(Item)

	// OnComplete is invoked exactly once on successful finalization.
	OnComplete func(SessionResult)

	// OnError is invoked exactly once on failure or cancellation. Use
	// IsCanceled and errors.As to discriminate.
	OnError func(error)
}

// SessionResult is the terminal summary handed to the caller.
type SessionResult struct {
	FragmentsReceived int
	ItemsEmitted      int
	TransformFailures int

	// FinalDocument is the strictly decoded full document, nil when the
	// final pass failed or never ran.
	FinalDocument any

	// FinalValidation describes the strict-pass failure, nil on success.
	FinalValidation *ValidationError

	// Records lists every emission in order.
	Records []EmittedItemRecord
}

// Session drives one streaming extraction: it pulls fragments from a source,
// re-parses the growing buffer, classifies visible array elements and forwards
// each completed element to the consumer exactly once, in index order.
//
// A Session is single-use and owns no shared state: concurrent extractions
// each get their own Session.
type Session struct {
	cfg    Config
	path   Path
	schema *jsonschema.Schema

	buffer    Buffer
	seq       *sequencer
	prevPrint map[int]string // fingerprints of still-growing non-last elements
	failures  int

	mu     sync.Mutex
	state  State
	result SessionResult
}

// NewSession validates cfg and returns a ready-to-run Session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.TargetPath == "" {
		return nil, errors.New("structstream: target path required")
	}
	if cfg.OnItem == nil {
		return nil, errors.New("structstream: OnItem callback required")
	}
	var schema *jsonschema.Schema
	if len(cfg.Schema) > 0 {
		compiled, err := CompileSchema(cfg.Schema)
		if err != nil {
			return nil, err
		}
		schema = compiled
	}
	return &Session{
		cfg:       cfg,
		path:      ParsePath(cfg.TargetPath),
		schema:    schema,
		seq:       newSequencer(cfg.Completeness.IDField),
		prevPrint: make(map[int]string),
		state:     StateIdle,
	}, nil
}

// State returns the current lifecycle phase. Safe for concurrent use.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the terminal summary. Meaningful once the session reached a
// terminal state; before that it reflects progress so far.
func (s *Session) Result() SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.result
	res.FragmentsReceived = s.buffer.Fragments()
	res.ItemsEmitted = s.seq.count()
	res.TransformFailures = s.failures
	res.Records = s.seq.snapshot()
	return res
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// Run consumes source until a terminal event, forwarding completed items as
// they form. It returns nil on successful completion, ErrCanceled on caller
// cancellation, and the failure error otherwise. The source is always closed
// before Run returns.
func (s *Session) Run(ctx context.Context, source FragmentSource) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	monitor := newStreamTimeoutMonitor(streamCtx, s.cfg.Timeouts, done, cancel)
	monitor.Start()

	//nolint:errcheck // best-effort cleanup
	defer func() { _ = source.Close() }()

	// A source blocked in a transport read cannot observe streamCtx, so close
	// it from the outside when a timeout or caller cancellation fires.
	go func() {
		select {
		case <-streamCtx.Done():
			_ = source.Close()
		case <-done:
		}
	}()

	for {
		ev, err := source.Next(streamCtx)
		if err != nil {
			if terr := monitor.GetTimeoutErr(); terr != nil {
				return s.fail(ctx, terr)
			}
			if streamCtx.Err() != nil {
				return s.cancelSession(ctx)
			}
			var terr TransportError
			if !errors.As(err, &terr) {
				terr = TransportError{Message: "fragment source failed", Cause: err}
			}
			return s.fail(ctx, terr)
		}

		monitor.SignalActivity()
		s.cfg.Telemetry.fragment(ctx, ev)

		switch ev.Kind {
		case FragmentText:
			monitor.SignalFirstContent()
			if s.State() == StateIdle {
				s.setState(StateStreaming)
				annotateSpan(ctx, "structstream.session.start")
			}
			s.buffer.Append(ev.Text)
			s.processBuffer(ctx, false)
			if streamCtx.Err() != nil {
				if terr := monitor.GetTimeoutErr(); terr != nil {
					return s.fail(ctx, terr)
				}
				return s.cancelSession(ctx)
			}
		case FragmentKeepalive:
			// Liveness only; SignalActivity above already reset the idle
			// timer and there is nothing to buffer.
		case FragmentEnd:
			return s.finalize(ctx)
		case FragmentError:
			cause := ev.Err
			if cause == nil {
				cause = errors.New("upstream reported an error")
			}
			return s.fail(ctx, TransportError{Message: "upstream stream failed", Cause: cause})
		default:
			return s.fail(ctx, TransportError{Message: fmt.Sprintf("unknown fragment kind %q", ev.Kind)})
		}
	}
}

// processBuffer re-runs the extraction pipeline over the full buffer snapshot.
// Recomputing from scratch each fragment avoids incremental-patch staleness;
// the snapshot boundary keeps that choice replaceable.
func (s *Session) processBuffer(ctx context.Context, finalFlush bool) {
	root, ok := ParsePartial(s.buffer.Snapshot())
	if !ok {
		// TransientParseGap: nothing extractable yet. Expected and frequent.
		return
	}
	elements, ok := s.path.Locate(root)
	if !ok {
		return
	}
	last := len(elements) - 1
	for i, el := range elements {
		if s.seq.seen(i) {
			continue
		}
		lastIndex := i == last
		if !finalFlush && !lastIndex {
			// Skip re-classifying an element whose value is unchanged since
			// the previous fragment; its verdict is still "growing".
			print := el.Fingerprint()
			if prev, seen := s.prevPrint[i]; seen && prev == print {
				break
			}
			s.prevPrint[i] = print
		}
		if !s.cfg.Completeness.classify(el, finalFlush, lastIndex) {
			// Emission is strictly ascending: a held-back element blocks its
			// successors until it completes, so a consumer never observes an
			// index gap.
			break
		}
		s.emit(ctx, i, el)
	}
}

func (s *Session) emit(ctx context.Context, index int, raw Value) {
	out, err := applyTransform(s.cfg.Transform, raw)
	if err != nil {
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()
		s.cfg.Telemetry.log(ctx, LogLevelError, "item transform failed", map[string]any{
			"index": index,
			"error": err.Error(),
		})
		s.cfg.Telemetry.metric(ctx, "structstream.transform_failures", 1, nil)
	}
	rec := s.seq.tryEmit(index, raw)
	if rec == nil {
		return
	}
	delete(s.prevPrint, index)
	item := Item{Index: index, ID: rec.AssignedID, Value: out, Raw: raw}
	annotateSpan(ctx, "structstream.item",
		attribute.Int("index", index),
		attribute.String("id", rec.AssignedID),
	)
	s.cfg.Telemetry.item(ctx, item)
	s.cfg.OnItem(item)
}

// finalize runs the strict end-of-stream pass: decode (and validate when a
// schema is configured) the whole buffer, then flush any elements the
// incremental path held back.
func (s *Session) finalize(ctx context.Context) error {
	s.setState(StateFinalizing)

	doc, verr := validateFinalDocument(s.schema, s.buffer.Snapshot())
	if verr != nil {
		s.mu.Lock()
		s.result.FinalValidation = verr
		s.mu.Unlock()
		return s.fail(ctx, *verr)
	}

	// The strict parse succeeded, so every visible element is final.
	s.processBuffer(ctx, true)

	s.mu.Lock()
	s.result.FinalDocument = doc
	s.mu.Unlock()
	s.setState(StateDone)

	res := s.Result()
	annotateSpan(ctx, "structstream.session.done",
		attribute.Int("items", res.ItemsEmitted),
		attribute.Int("fragments", res.FragmentsReceived),
	)
	s.cfg.Telemetry.log(ctx, LogLevelInfo, "session complete", map[string]any{
		"items":     res.ItemsEmitted,
		"fragments": res.FragmentsReceived,
	})
	if s.cfg.OnComplete != nil {
		s.cfg.OnComplete(res)
	}
	return nil
}

func (s *Session) fail(ctx context.Context, err error) error {
	s.setState(StateFailed)
	annotateSpan(ctx, "structstream.session.failed", attribute.String("error", err.Error()))
	s.cfg.Telemetry.log(ctx, LogLevelError, "session failed", map[string]any{
		"error": err.Error(),
	})
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
	return err
}

func (s *Session) cancelSession(ctx context.Context) error {
	s.setState(StateCanceled)
	annotateSpan(ctx, "structstream.session.canceled")
	s.cfg.Telemetry.log(ctx, LogLevelInfo, "session canceled", nil)
	if s.cfg.OnError != nil {
		s.cfg.OnError(ErrCanceled)
	}
	return ErrCanceled
}

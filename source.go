package structstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
)

// FragmentSource is the upstream producer interface: an ordered sequence of
// fragments ending in exactly one FragmentEnd or FragmentError. Next blocks
// until a fragment is available or ctx is done.
type FragmentSource interface {
	Next(ctx context.Context) (FragmentEvent, error)
	Close() error
}

// ChannelSource adapts an in-process fragment channel. The producer must send
// exactly one terminal event; a channel closed without one is surfaced as a
// transport error.
type ChannelSource struct {
	ch  <-chan FragmentEvent
	seq int
}

// NewChannelSource wraps ch as a FragmentSource.
func NewChannelSource(ch <-chan FragmentEvent) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Next implements FragmentSource.
func (s *ChannelSource) Next(ctx context.Context) (FragmentEvent, error) {
	select {
	case <-ctx.Done():
		return FragmentEvent{}, ctx.Err()
	case ev, ok := <-s.ch:
		if !ok {
			return FragmentEvent{}, TransportError{Message: "fragment channel closed without terminal event"}
		}
		ev.Seq = s.seq
		s.seq++
		return ev, nil
	}
}

// Close implements FragmentSource. The channel belongs to the producer, so
// there is nothing to release.
func (s *ChannelSource) Close() error { return nil }

// wireRecord holds the parsed fields of one upstream wire record. Both the
// NDJSON and SSE transports deliver this shape, one record per frame.
type wireRecord struct {
	kind    string
	text    string
	code    string
	message string
}

func parseWireRecord(line []byte) (wireRecord, error) {
	var raw struct {
		Type    string `json:"type"`
		Text    string `json:"text,omitempty"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return wireRecord{}, err
	}
	return wireRecord{
		kind:    strings.TrimSpace(strings.ToLower(raw.Type)),
		text:    raw.Text,
		code:    raw.Code,
		message: raw.Message,
	}, nil
}

// frameSignal classifies what a transport frame carried besides its payload.
type frameSignal int

const (
	frameData frameSignal = iota
	frameDone
	frameKeepalive
)

// lineSource is the shared read loop for the NDJSON and SSE transports: pull
// frames off a bufio.Reader, decode wire records, translate to fragments.
type lineSource struct {
	reader *bufio.Reader
	body   io.ReadCloser
	frame  func(*bufio.Reader) ([]byte, frameSignal, error)

	seq       int
	terminal  bool
	closeOnce sync.Once
	closeErr  error
}

// Next implements FragmentSource.
func (s *lineSource) Next(ctx context.Context) (FragmentEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return FragmentEvent{}, ctx.Err()
		default:
		}
		if s.terminal {
			// Over-reading past the terminal event is harmless.
			return FragmentEvent{}, io.EOF
		}

		payload, signal, err := s.frame(s.reader)
		if err != nil {
			if errors.Is(err, io.EOF) && len(bytes.TrimSpace(payload)) == 0 {
				// End of body without a terminal record is a protocol
				// violation per the streaming contract.
				return FragmentEvent{}, TransportError{Message: "stream ended without terminal event"}
			}
			if len(bytes.TrimSpace(payload)) == 0 {
				return FragmentEvent{}, TransportError{Message: "stream read failed", Cause: err}
			}
			// Partial final frame at EOF: fall through and decode it.
		}
		switch signal {
		case frameDone:
			s.terminal = true
			return s.event(FragmentEvent{Kind: FragmentEnd}), nil
		case frameKeepalive:
			return s.event(FragmentEvent{Kind: FragmentKeepalive}), nil
		}
		payload = bytes.TrimSpace(payload)
		if len(payload) == 0 {
			continue
		}

		record, err := parseWireRecord(payload)
		if err != nil {
			return FragmentEvent{}, TransportError{Message: "invalid stream record", Cause: err}
		}
		switch record.kind {
		case "delta", "text":
			return s.event(FragmentEvent{Kind: FragmentText, Text: record.text}), nil
		case "done", "end":
			s.terminal = true
			return s.event(FragmentEvent{Kind: FragmentEnd}), nil
		case "error":
			s.terminal = true
			msg := strings.TrimSpace(record.message)
			if msg == "" {
				msg = "stream error"
			}
			cause := errors.New(msg)
			if record.code != "" {
				cause = errors.New(record.code + ": " + msg)
			}
			return s.event(FragmentEvent{Kind: FragmentError, Err: cause}), nil
		case "":
			return FragmentEvent{}, TransportError{Message: "stream record missing type"}
		case "keepalive", "start":
			// Connection upkeep records carry no text but prove the upstream
			// is alive; surface them so the idle timer resets.
			return s.event(FragmentEvent{Kind: FragmentKeepalive}), nil
		default:
			// Ignore unknown record types for forward compatibility.
			continue
		}
	}
}

func (s *lineSource) event(ev FragmentEvent) FragmentEvent {
	ev.Seq = s.seq
	s.seq++
	return ev
}

// Close implements FragmentSource.
func (s *lineSource) Close() error {
	s.closeOnce.Do(func() {
		if cwe, ok := s.body.(interface{ CloseWithError(error) error }); ok {
			//nolint:errcheck // best-effort cleanup
			_ = cwe.CloseWithError(context.Canceled)
		}
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// NewNDJSONSource reads newline-delimited JSON wire records from body:
//
//	{"type":"delta","text":"..."}
//	{"type":"done"}
//	{"type":"error","code":"...","message":"..."}
func NewNDJSONSource(body io.ReadCloser) FragmentSource {
	return &lineSource{
		reader: bufio.NewReader(body),
		body:   body,
		frame:  ndjsonFrame,
	}
}

func ndjsonFrame(r *bufio.Reader) ([]byte, frameSignal, error) {
	line, err := r.ReadBytes('\n')
	return line, frameData, err
}

// NewSSESource reads Server-Sent-Events frames from body. Each frame's data
// payload is one wire record in the NDJSON shape; a bare "[DONE]" data line is
// accepted as the terminal marker.
func NewSSESource(body io.ReadCloser) FragmentSource {
	return &lineSource{
		reader: bufio.NewReader(body),
		body:   body,
		frame:  sseFrame,
	}
}

func sseFrame(r *bufio.Reader) ([]byte, frameSignal, error) {
	var data []byte
	for {
		line, err := r.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			// Blank line ends the frame.
			if len(data) > 0 || err != nil {
				return data, dataSignal(data), err
			}
			continue
		}
		if bytes.HasPrefix(trimmed, []byte(":")) {
			// Comment line, the conventional SSE keepalive. Between frames it
			// is a liveness signal in its own right; mid-frame the data that
			// follows carries that signal anyway.
			if err != nil {
				return data, dataSignal(data), err
			}
			if len(data) == 0 {
				return nil, frameKeepalive, nil
			}
			continue
		}
		if rest, ok := bytes.CutPrefix(trimmed, []byte("data:")); ok {
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, bytes.TrimSpace(rest)...)
		}
		// Field lines other than data (event:, id:, retry:) carry no payload
		// in this protocol and are skipped.
		if err != nil {
			return data, dataSignal(data), err
		}
	}
}

// dataSignal maps a completed frame payload to its signal: the "[DONE]"
// sentinel terminates the stream, anything else is data.
func dataSignal(data []byte) frameSignal {
	if bytes.Equal(bytes.TrimSpace(data), []byte("[DONE]")) {
		return frameDone
	}
	return frameData
}

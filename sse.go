package structstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WireEventType identifies the downstream SSE frame kind.
type WireEventType string

const (
	WireEventItem     WireEventType = "item"
	WireEventComplete WireEventType = "complete"
	WireEventError    WireEventType = "error"
)

// WireEvent is the downstream wire shape: each emitted item and the terminal
// result are re-serialized by the surrounding HTTP layer as one SSE frame.
// This shape is the contract clients depend on.
type WireEvent struct {
	Type    WireEventType `json:"type"`
	Index   *int          `json:"index,omitempty"`
	Data    any           `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
}

// ItemWireEvent builds the frame for one emitted item.
func ItemWireEvent(item Item) WireEvent {
	index := item.Index
	return WireEvent{Type: WireEventItem, Index: &index, Data: item.Value}
}

// CompleteWireEvent builds the terminal success frame.
func CompleteWireEvent(result SessionResult) WireEvent {
	return WireEvent{Type: WireEventComplete, Data: result}
}

// ErrorWireEvent builds the terminal failure frame.
func ErrorWireEvent(err error) WireEvent {
	return WireEvent{Type: WireEventError, Message: err.Error()}
}

// EncodeSSE renders ev as a single Server-Sent-Events frame:
//
//	data: {"type":"item","index":0,"data":{...}}\n\n
func EncodeSSE(ev WireEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("structstream: encode wire event: %w", err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}

// WriteSSE encodes ev to w and flushes when w support it. Handlers typically
// wire Config.OnItem and the terminal callbacks straight through this.
func WriteSSE(w io.Writer, ev WireEvent) error {
	frame, err := EncodeSSE(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// Package testutil provides scripted streaming producers for structstream
// tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"
)

// Step describes one wire line to emit with an optional delay before it.
type Step struct {
	Delay time.Duration
	Line  string
}

// DeltaStep builds a delta record step for text.
func DeltaStep(text string) Step {
	payload, _ := json.Marshal(map[string]string{"type": "delta", "text": text})
	return Step{Line: string(payload)}
}

// DoneStep builds the terminal success record step.
func DoneStep() Step {
	return Step{Line: `{"type":"done"}`}
}

// KeepaliveStep builds a liveness record step carrying no text.
func KeepaliveStep() Step {
	return Step{Line: `{"type":"keepalive"}`}
}

// ErrorStep builds the terminal failure record step.
func ErrorStep(code, message string) Step {
	payload, _ := json.Marshal(map[string]string{"type": "error", "code": code, "message": message})
	return Step{Line: string(payload)}
}

// ServerConfig configures the streaming test servers.
type ServerConfig struct {
	Status     int
	Headers    map[string]string
	FinalDelay time.Duration
}

// NewNDJSONServer returns an httptest server that streams one record per line
// with the scripted delays.
func NewNDJSONServer(steps []Step, cfg ServerConfig) *httptest.Server {
	return newStreamServer(steps, cfg, "application/x-ndjson", func(w http.ResponseWriter, line string) {
		//nolint:errcheck // test server
		_, _ = w.Write([]byte(line + "\n"))
	})
}

// NewSSEServer returns an httptest server that streams each record as a
// Server-Sent-Events data frame.
func NewSSEServer(steps []Step, cfg ServerConfig) *httptest.Server {
	return newStreamServer(steps, cfg, "text/event-stream", func(w http.ResponseWriter, line string) {
		//nolint:errcheck // test server
		_, _ = w.Write([]byte("data: " + line + "\n\n"))
	})
}

func newStreamServer(steps []Step, cfg ServerConfig, contentType string, write func(http.ResponseWriter, string)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := cfg.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", contentType)
		for k, v := range cfg.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		flusher, _ := w.(http.Flusher)
		for _, step := range steps {
			if step.Delay > 0 {
				time.Sleep(step.Delay)
			}
			write(w, step.Line)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if cfg.FinalDelay > 0 {
			time.Sleep(cfg.FinalDelay)
		}
	}))
}

// FragmentScript splits text into chunks of size n, useful for driving a
// session through arbitrary fragmentations of the same document.
func FragmentScript(text string, n int) []Step {
	if n <= 0 {
		n = 1
	}
	var steps []Step
	for start := 0; start < len(text); start += n {
		end := start + n
		if end > len(text) {
			end = len(text)
		}
		steps = append(steps, DeltaStep(text[start:end]))
	}
	return append(steps, DoneStep())
}

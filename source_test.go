package structstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/essentialabs/structstream/testutil"
)

func drainSource(t *testing.T, source FragmentSource) ([]FragmentEvent, error) {
	t.Helper()
	defer func() {
		//nolint:errcheck // test cleanup
		_ = source.Close()
	}()
	var events []FragmentEvent
	for {
		ev, err := source.Next(context.Background())
		if err != nil {
			return events, err
		}
		events = append(events, ev)
		if ev.Kind == FragmentEnd || ev.Kind == FragmentError {
			return events, nil
		}
	}
}

func TestNDJSONSource_DeltasAndDone(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		`{"type":"delta","text":"{\"a\":"}` + "\n" +
			`{"type":"keepalive"}` + "\n" +
			`{"type":"delta","text":"1}"}` + "\n" +
			`{"type":"done"}` + "\n",
	))
	events, err := drainSource(t, NewNDJSONSource(body))
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("events=%d", len(events))
	}
	if events[0].Text != `{"a":` || events[2].Text != "1}" {
		t.Fatalf("texts=%q %q", events[0].Text, events[2].Text)
	}
	if events[1].Kind != FragmentKeepalive {
		t.Fatalf("events[1].Kind=%s", events[1].Kind)
	}
	if events[3].Kind != FragmentEnd {
		t.Fatalf("terminal=%s", events[3].Kind)
	}
	for i, ev := range events {
		if ev.Seq != i {
			t.Fatalf("events[%d].Seq=%d", i, ev.Seq)
		}
	}
}

func TestNDJSONSource_ErrorRecord(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		`{"type":"delta","text":"x"}` + "\n" +
			`{"type":"error","code":"UPSTREAM_TIMEOUT","message":"backend gave up"}` + "\n",
	))
	events, err := drainSource(t, NewNDJSONSource(body))
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	last := events[len(events)-1]
	if last.Kind != FragmentError {
		t.Fatalf("terminal=%s", last.Kind)
	}
	if !strings.Contains(last.Err.Error(), "UPSTREAM_TIMEOUT") {
		t.Fatalf("err=%v", last.Err)
	}
}

func TestNDJSONSource_EOFWithoutTerminalIsProtocolViolation(t *testing.T) {
	body := io.NopCloser(strings.NewReader(`{"type":"delta","text":"x"}` + "\n"))
	_, err := drainSource(t, NewNDJSONSource(body))
	var terr TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestNDJSONSource_MissingTypeIsProtocolViolation(t *testing.T) {
	body := io.NopCloser(strings.NewReader(`{"text":"x"}` + "\n"))
	_, err := drainSource(t, NewNDJSONSource(body))
	var terr TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestNDJSONSource_UnknownTypesIgnored(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		`{"type":"usage","text":"ignored"}` + "\n" +
			`{"type":"done"}` + "\n",
	))
	events, err := drainSource(t, NewNDJSONSource(body))
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(events) != 1 || events[0].Kind != FragmentEnd {
		t.Fatalf("events=%+v", events)
	}
}

func TestSSESource_Frames(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		"data: {\"type\":\"delta\",\"text\":\"{\\\"a\\\":1\"}\n\n" +
			": keepalive comment\n\n" +
			"data: {\"type\":\"delta\",\"text\":\"}\"}\n\n" +
			"data: [DONE]\n\n",
	))
	events, err := drainSource(t, NewSSESource(body))
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("events=%d", len(events))
	}
	if events[0].Text != `{"a":1` || events[2].Text != "}" {
		t.Fatalf("texts=%q %q", events[0].Text, events[2].Text)
	}
	if events[1].Kind != FragmentKeepalive {
		t.Fatalf("events[1].Kind=%s", events[1].Kind)
	}
	if events[3].Kind != FragmentEnd {
		t.Fatalf("terminal=%s", events[3].Kind)
	}
}

func TestSource_NextAfterTerminalReturnsEOF(t *testing.T) {
	body := io.NopCloser(strings.NewReader(`{"type":"done"}` + "\n"))
	source := NewNDJSONSource(body)
	defer func() {
		//nolint:errcheck // test cleanup
		_ = source.Close()
	}()
	ev, err := source.Next(context.Background())
	if err != nil || ev.Kind != FragmentEnd {
		t.Fatalf("first Next: ev=%+v err=%v", ev, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := source.Next(context.Background()); !errors.Is(err, io.EOF) {
			t.Fatalf("Next after terminal: err=%v", err)
		}
	}
}

func TestSSESource_AgainstScriptedServer(t *testing.T) {
	server := testutil.NewSSEServer([]testutil.Step{
		testutil.DeltaStep(`{"data":{"items":[`),
		testutil.DeltaStep(`{"id":"1","name":"Stress"},`),
		testutil.DeltaStep(`{"id":"2","name":"Fatigue"}]}}`),
		testutil.DoneStep(),
	}, testutil.ServerConfig{})
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}

	rec := &sessionRecorder{}
	cfg := rec.config(CompletenessPolicy{RequiredFields: []string{"id", "name"}, IDField: "id"}, "data.items")
	session, err := NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := session.Run(context.Background(), NewSSESource(resp.Body)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.items) != 2 {
		t.Fatalf("items=%d", len(rec.items))
	}
	if rec.items[0].ID != "1" || rec.items[1].ID != "2" {
		t.Fatalf("ids=%q %q", rec.items[0].ID, rec.items[1].ID)
	}
}

func TestNDJSONSource_AgainstScriptedServer(t *testing.T) {
	server := testutil.NewNDJSONServer(
		testutil.FragmentScript(`{"data":{"items":[{"id":"1"},{"id":"2"}]}}`, 7),
		testutil.ServerConfig{},
	)
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}

	rec := &sessionRecorder{}
	cfg := rec.config(CompletenessPolicy{RequiredFields: []string{"id"}}, "data.items")
	session, err := NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := session.Run(context.Background(), NewNDJSONSource(resp.Body)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(rec.items); got != 2 {
		t.Fatalf("items=%d", got)
	}
}

func TestChannelSource_ClosedWithoutTerminal(t *testing.T) {
	ch := make(chan FragmentEvent)
	close(ch)
	_, err := NewChannelSource(ch).Next(context.Background())
	var terr TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

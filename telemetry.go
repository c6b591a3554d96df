package structstream

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryHooks expose observability callbacks without forcing dependencies
// on the caller. All hooks are optional and must be cheap: they run inline on
// the session loop.
type TelemetryHooks struct {
	// OnFragment fires for every upstream fragment received.
	OnFragment func(ctx context.Context, fragment FragmentEvent)
	// OnItem fires for every item emitted to the consumer.
	OnItem func(ctx context.Context, item Item)
	// OnLogEntry allows callers to capture session log events.
	OnLogEntry func(ctx context.Context, entry LogEntry)
	// OnMetric records lightweight counters for observability dashboards.
	OnMetric func(ctx context.Context, metric Metric)
}

// LogLevel encodes the severity for log hooks.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelError LogLevel = "error"
)

// LogEntry captures structured log details for session consumers.
type LogEntry struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

// Metric represents a single observability datapoint.
type Metric struct {
	Name   string
	Value  float64
	Labels map[string]string
}

func (t TelemetryHooks) log(ctx context.Context, level LogLevel, msg string, fields map[string]any) {
	if t.OnLogEntry == nil {
		return
	}
	t.OnLogEntry(ctx, LogEntry{Level: level, Message: msg, Fields: fields})
}

func (t TelemetryHooks) metric(ctx context.Context, name string, value float64, labels map[string]string) {
	if t.OnMetric == nil {
		return
	}
	t.OnMetric(ctx, Metric{Name: name, Value: value, Labels: labels})
}

func (t TelemetryHooks) fragment(ctx context.Context, fragment FragmentEvent) {
	if t.OnFragment == nil {
		return
	}
	t.OnFragment(ctx, fragment)
}

func (t TelemetryHooks) item(ctx context.Context, item Item) {
	if t.OnItem == nil {
		return
	}
	t.OnItem(ctx, item)
}

// ZerologHooks bridges TelemetryHooks onto a zerolog logger. Log entries map
// to the matching level, metrics are logged at debug with the datapoint as
// fields.
func ZerologHooks(logger zerolog.Logger) TelemetryHooks {
	return TelemetryHooks{
		OnLogEntry: func(_ context.Context, entry LogEntry) {
			var ev *zerolog.Event
			switch entry.Level {
			case LogLevelError:
				ev = logger.Error()
			case LogLevelDebug:
				ev = logger.Debug()
			default:
				ev = logger.Info()
			}
			ev.Fields(entry.Fields).Msg(entry.Message)
		},
		OnMetric: func(_ context.Context, metric Metric) {
			ev := logger.Debug().Str("metric", metric.Name).Float64("value", metric.Value)
			for k, v := range metric.Labels {
				ev = ev.Str(k, v)
			}
			ev.Msg("metric")
		},
	}
}

// annotateSpan adds a named event to the span in ctx, if any. Sessions use
// this to mark emission and terminal milestones on the caller's trace.
func annotateSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/meetme/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG SINK
// ══════════════════════════════════════════════════════════════════════════════

// LogSink writes every event as one structured log record.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink that logs at level.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

// Notify implements shared.EventSink.
func (s *LogSink) Notify(event shared.Event) {
	attrs := make([]slog.Attr, 0, 3)
	attrs = append(attrs,
		slog.String("event_type", string(event.EventType())),
		slog.String("aggregate_id", event.AggregateID()),
	)

	payload := event.Payload()
	fields := make([]any, 0, len(payload)*2)
	for k, v := range payload {
		fields = append(fields, k, v)
	}
	attrs = append(attrs, slog.Group("payload", fields...))

	s.logger.LogAttrs(context.Background(), s.level, "event", attrs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// FAN-OUT
// ══════════════════════════════════════════════════════════════════════════════

// FanOut notifies several sinks in order. A panicking sink does not stop
// the others.
type FanOut []shared.EventSink

// Notify implements shared.EventSink.
func (f FanOut) Notify(event shared.Event) {
	for _, sink := range f {
		notifySafely(sink, event)
	}
}

func notifySafely(sink shared.EventSink, event shared.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Error("event sink panicked", "event_type", event.EventType(), "panic", r)
		}
	}()
	sink.Notify(event)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDER
// ══════════════════════════════════════════════════════════════════════════════

// Recorder keeps every event it receives, in order.
type Recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements shared.EventSink.
func (r *Recorder) Notify(event shared.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns the recorded events.
func (r *Recorder) Events() []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType())
	}
	return types
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t shared.EventType) []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

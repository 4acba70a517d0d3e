// Package messaging delivers engine events to listeners: an in-memory bus,
// a Redis publisher, a structured-log sink and a recorder for tests.
package messaging

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/meetme/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// Bus is an in-memory event sink with per-type subscriptions.
//
// In sync mode handlers run inside Notify. In async mode Notify only
// enqueues; a single worker delivers events in the order they arrived, and
// events that do not fit into the queue are dropped so the engine never waits.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	middlewares []Middleware

	asyncMode bool
	queue     chan shared.Event
	logger    *slog.Logger
	metrics   *BusMetrics
	closed    bool
	wg        sync.WaitGroup
}

// BusConfig contains configuration for Bus.
type BusConfig struct {
	// AsyncMode moves delivery onto a background worker.
	AsyncMode bool

	// QueueSize bounds the async queue.
	QueueSize int

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultBusConfig returns sensible defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		AsyncMode: true,
		QueueSize: 256,
	}
}

// NewBus creates a new bus. Handler panics are always recovered.
func NewBus(config BusConfig) *Bus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}

	b := &Bus{
		handlers:  make(map[shared.EventType][]shared.EventHandler),
		asyncMode: config.AsyncMode,
		logger:    config.Logger,
		metrics:   NewBusMetrics(),
	}
	b.middlewares = []Middleware{RecoveryMiddleware(config.Logger)}

	if b.asyncMode {
		b.queue = make(chan shared.Event, config.QueueSize)
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

// Use appends a middleware applied to every handler.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middlewares = append(b.middlewares, mw)
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *Bus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")
	return nil
}

// Notify implements shared.EventSink. It never blocks on handlers in
// async mode and never returns an error to the engine. Handlers run without
// the bus lock held, so they may subscribe or notify again.
func (b *Bus) Notify(event shared.Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		b.metrics.RecordDropped(event.EventType())
		return
	}
	b.metrics.RecordPublish(event.EventType())

	if !b.asyncMode {
		handlers := b.routeLocked(event)
		b.mu.RUnlock()
		b.deliver(event, handlers)
		return
	}

	// The queue is only closed under the write lock.
	select {
	case b.queue <- event:
	default:
		b.metrics.RecordDropped(event.EventType())
		b.logger.Warn("event queue full, dropping event", "event_type", event.EventType())
	}
	b.mu.RUnlock()
}

// worker drains the queue in order until Close.
func (b *Bus) worker() {
	defer b.wg.Done()
	for event := range b.queue {
		b.mu.RLock()
		handlers := b.routeLocked(event)
		b.mu.RUnlock()
		b.deliver(event, handlers)
	}
}

// routeLocked returns the middleware-wrapped handlers for event.
// Caller holds b.mu for reading.
func (b *Bus) routeLocked(event shared.Event) []shared.EventHandler {
	typed := b.handlers[event.EventType()]
	handlers := make([]shared.EventHandler, 0, len(typed)+len(b.allHandlers))
	handlers = append(handlers, typed...)
	handlers = append(handlers, b.allHandlers...)

	for j, h := range handlers {
		for i := len(b.middlewares) - 1; i >= 0; i-- {
			h = b.middlewares[i](h)
		}
		handlers[j] = h
	}
	return handlers
}

// deliver runs handlers for event.
func (b *Bus) deliver(event shared.Event, handlers []shared.EventHandler) {
	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return
	}

	for _, h := range handlers {
		start := time.Now()
		err := h(event)
		b.metrics.RecordHandlerExecution(event.EventType(), time.Since(start), err == nil)
		if err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.queue != nil {
		close(b.queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus metrics.
func (b *Bus) Metrics() *BusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// BusMetrics tracks bus throughput.
type BusMetrics struct {
	mu sync.RWMutex

	PublishedTotal map[shared.EventType]int64
	DroppedTotal   map[shared.EventType]int64

	HandlerExecutions    int64
	HandlerSuccesses     int64
	HandlerFailures      int64
	HandlerTotalDuration time.Duration
}

// NewBusMetrics creates a new metrics tracker.
func NewBusMetrics() *BusMetrics {
	return &BusMetrics{
		PublishedTotal: make(map[shared.EventType]int64),
		DroppedTotal:   make(map[shared.EventType]int64),
	}
}

// RecordPublish records an accepted event.
func (m *BusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedTotal[eventType]++
}

// RecordDropped records an event that was not delivered.
func (m *BusMetrics) RecordDropped(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DroppedTotal[eventType]++
}

// RecordHandlerExecution records a handler execution.
func (m *BusMetrics) RecordHandlerExecution(_ shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HandlerExecutions++
	m.HandlerTotalDuration += duration
	if success {
		m.HandlerSuccesses++
	} else {
		m.HandlerFailures++
	}
}

// Snapshot returns a copy of current metrics.
func (m *BusMetrics) Snapshot() BusMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var published, dropped int64
	for _, v := range m.PublishedTotal {
		published += v
	}
	for _, v := range m.DroppedTotal {
		dropped += v
	}

	avg := time.Duration(0)
	if m.HandlerExecutions > 0 {
		avg = m.HandlerTotalDuration / time.Duration(m.HandlerExecutions)
	}

	return BusMetricsSnapshot{
		TotalPublished:         published,
		TotalDropped:           dropped,
		TotalHandlerExecs:      m.HandlerExecutions,
		HandlerFailures:        m.HandlerFailures,
		AverageHandlerDuration: avg,
	}
}

// BusMetricsSnapshot is a point-in-time snapshot of metrics.
type BusMetricsSnapshot struct {
	TotalPublished         int64
	TotalDropped           int64
	TotalHandlerExecs      int64
	HandlerFailures        int64
	AverageHandlerDuration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrBusClosed is returned when operations are attempted on a closed bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)

// Package events is the model lifecycle event bus. Loaders and workers emit
// named events ("model.loaded", "model.error", ...) and any number of
// subscribers receive them, synchronously or through a buffered queue.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Well-known event names.
const (
	ModelLoaded    = "model.loaded"
	ModelError     = "model.error"
	ModelExported  = "model.exported"
	ViewpointSaved = "viewpoint.saved"
)

// Event is one bus message.
type Event struct {
	Name      string
	ModelID   string
	Err       error
	Payload   any
	Timestamp time.Time
}

// HandlerFunc consumes an event.
type HandlerFunc func(Event)

// Logger is the pluggable logging surface of the bus.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a subscription.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the subscriber async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered subscriber block when its queue is full instead
// of dropping events.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging around the subscriber.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Bus routes events to subscribers by event name.
type Bus struct {
	logger Logger

	queueSize metric.Int64ObservableGauge
	delivered metric.Int64Counter
	dropped   metric.Int64Counter

	mu          sync.RWMutex
	subscribers map[string][]HandlerFunc
	buffers     []chan Event
	bufferNames []string
}

// New creates an event bus. Metrics go to the global OTel meter, which is a
// no-op when not configured.
func New(logger Logger) (*Bus, error) {
	b := &Bus{
		logger:      logger,
		subscribers: make(map[string][]HandlerFunc),
	}

	m := meter()
	var err error

	b.queueSize, err = m.Int64ObservableGauge(
		"events.queue.size",
		metric.WithDescription("Current number of events queued per subscriber"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			b.mu.RLock()
			defer b.mu.RUnlock()
			for i, buf := range b.buffers {
				o.ObserveInt64(b.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("event", b.bufferNames[i])))
			}
			return nil
		},
		b.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	b.delivered, err = m.Int64Counter(
		"events.delivered",
		metric.WithDescription("Total events delivered to subscribers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivered counter: %w", err)
	}

	b.dropped, err = m.Int64Counter(
		"events.dropped",
		metric.WithDescription("Total events dropped due to full subscriber queues"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return b, nil
}

// Subscribe registers a handler for the given event name.
func (b *Bus) Subscribe(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.logged {
		handler = b.withLogging(name, handler)
	}
	if cfg.bufferSize > 0 {
		handler = b.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[name] = append(b.subscribers[name], handler)
}

// Emit delivers an event to every subscriber of its name. A zero Timestamp
// is filled in.
func (b *Bus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := b.subscribers[e.Name]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
	b.delivered.Add(context.Background(), int64(len(handlers)),
		metric.WithAttributes(attribute.String("event", e.Name)))
}

// HasSubscribers reports whether anyone listens for the event name.
func (b *Bus) HasSubscribers(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[name]) > 0
}

func (b *Bus) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	b.mu.Lock()
	b.buffers = append(b.buffers, buffer)
	b.bufferNames = append(b.bufferNames, name)
	b.mu.Unlock()

	eventAttr := attribute.String("event", name)

	go func() {
		for e := range buffer {
			h(e)
		}
	}()

	if blocking {
		return func(e Event) {
			buffer <- e
		}
	}

	return func(e Event) {
		select {
		case buffer <- e:
		default:
			b.dropped.Add(context.Background(), 1, metric.WithAttributes(eventAttr))
			if b.logger != nil {
				b.logger.Error("event dropped, subscriber queue full", "event", name)
			}
		}
	}
}

func (b *Bus) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) {
		start := time.Now()
		if b.logger != nil {
			b.logger.Debug("delivering event", "event", name, "model", e.ModelID)
		}

		h(e)

		if b.logger != nil {
			if e.Err != nil {
				b.logger.Error("event carried error", "event", name, "model", e.ModelID, "duration", time.Since(start), "error", e.Err)
			} else {
				b.logger.Debug("event delivered", "event", name, "model", e.ModelID, "duration", time.Since(start))
			}
		}
	}
}

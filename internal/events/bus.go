package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const defaultQueueSize = 256

// Handler consumes lifecycle events. Handler errors are logged and counted;
// they never propagate to the operation that published the event.
type Handler interface {
	// Name identifies the handler in logs and metrics.
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// OutcomeObserver is notified after each handler invocation, for metrics.
type OutcomeObserver func(handler string, ev Event, err error)

type subscription struct {
	handler Handler
	queue   chan Event
}

// Bus is an in-process fan-out bus. Each subscriber drains its own buffered
// queue on its own goroutine, fully detached from publishers: Publish never
// waits for handlers and reports nothing about their outcome.
type Bus struct {
	mu      sync.Mutex
	subs    []*subscription
	started bool
	closed  bool
	wg      sync.WaitGroup

	queueSize int
	observer  OutcomeObserver
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize overrides the per-subscriber queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithOutcomeObserver installs a callback invoked after every handler run.
func WithOutcomeObserver(obs OutcomeObserver) Option {
	return func(b *Bus) {
		b.observer = obs
	}
}

// NewBus creates a bus. Subscribe before Start; Publish after Start.
func NewBus(opts ...Option) *Bus {
	b := &Bus{queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler. It must be called before Start.
func (b *Bus) Subscribe(h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("cannot subscribe %q: bus already started", h.Name())
	}
	b.subs = append(b.subs, &subscription{handler: h, queue: make(chan Event, b.queueSize)})
	return nil
}

// Start launches one delivery goroutine per subscriber. The context bounds
// handler execution, not queue draining: Close still delivers queued events.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	for _, sub := range b.subs {
		b.wg.Add(1)
		go b.deliver(ctx, sub)
	}
}

func (b *Bus) deliver(ctx context.Context, sub *subscription) {
	defer b.wg.Done()
	for ev := range sub.queue {
		b.handleOne(ctx, sub.handler, ev)
	}
}

func (b *Bus) handleOne(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"handler", h.Name(), "event", ev.Type, "kind", ev.Kind, "id", ev.ResourceID, "panic", r)
			if b.observer != nil {
				b.observer(h.Name(), ev, fmt.Errorf("panic: %v", r))
			}
		}
	}()
	err := h.Handle(ctx, ev)
	if err != nil {
		slog.Error("event handler failed",
			"handler", h.Name(), "event", ev.Type, "kind", ev.Kind, "id", ev.ResourceID, "error", err)
	}
	if b.observer != nil {
		b.observer(h.Name(), ev, err)
	}
}

// Publish hands the event to every subscriber queue without waiting for
// handlers. When a queue is full the event is dropped for that subscriber and
// a warning logged; the derived views are best effort.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.queue <- ev:
		default:
			slog.Warn("event queue full, dropping event",
				"handler", sub.handler.Name(), "event", ev.Type, "kind", ev.Kind, "id", ev.ResourceID)
		}
	}
}

// Close stops accepting events, drains the queues and waits for the delivery
// goroutines to finish.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

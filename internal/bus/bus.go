// Package bus is the in-process event bus. Dispatch is synchronous and
// in registration order; it is the single pub/sub primitive in the
// process, and the cross-context broadcaster bridges off it like any
// other subscriber.
package bus

import (
	"context"
	"log/slog"
	"sync"
)

type Handler func(ctx context.Context, payload any) error

type subscription struct {
	id uint64
	fn Handler
}

type Bus struct {
	mu     sync.Mutex
	subs   map[string][]subscription
	nextID uint64
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger.With("component", "bus"),
	}
}

// Subscribe registers fn for event and returns its unsubscribe func.
// Registrations are independent: subscribing the same function twice
// yields two entries, each removable only by its own unsubscribe.
func (b *Bus) Subscribe(event string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[event] = append(b.subs[event], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

// Emit invokes all handlers registered for event, in registration
// order. A failing or panicking handler is logged and does not stop
// dispatch to the handlers after it.
func (b *Bus) Emit(ctx context.Context, event string, payload any) {
	b.mu.Lock()
	list := make([]subscription, len(b.subs[event]))
	copy(list, b.subs[event])
	b.mu.Unlock()

	for _, s := range list {
		b.dispatch(ctx, event, s.fn, payload)
	}
}

func (b *Bus) dispatch(ctx context.Context, event string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "event handler panicked", "event", event, "panic", r)
		}
	}()

	if err := fn(ctx, payload); err != nil {
		b.logger.ErrorContext(ctx, "event handler failed", "event", event, "error", err)
	}
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[event]
	for i, s := range list {
		if s.id == id {
			b.subs[event] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

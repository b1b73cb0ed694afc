// Package broadcast fans wallet events out to sibling processes on the
// same host and keeps a bounded audit log of everything it sent. The
// transport is Redis pub/sub when reachable, a shared watched file
// otherwise; the choice is made once at startup.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aidarbekov/walletd/internal/bus"
	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/metrics"
	"github.com/aidarbekov/walletd/internal/repository"
)

// LogLimit caps the audit log. Oldest entries are evicted past this.
const LogLimit = 100

// Transport delivers envelopes to other contexts. Delivery is best
// effort and FIFO per sender; nothing is guaranteed across senders or
// to contexts that are not currently running.
type Transport interface {
	Send(ctx context.Context, event domain.SyncEvent) error
	// Listen attaches a receiver and returns its detach func.
	Listen(ctx context.Context, fn func(domain.SyncEvent)) (stop func(), err error)
	Close() error
}

var forwarded = []string{
	domain.EventTokenCreated,
	domain.EventTokenUpdated,
	domain.EventTokenDeleted,
	domain.EventLoginChanged,
}

type Broadcaster struct {
	transport Transport
	log       repository.SyncLogRepository
	source    string
	logger    *slog.Logger

	mu        sync.Mutex
	unsubs    []func()
	stops     []func()
	closeOnce sync.Once
}

func New(transport Transport, log repository.SyncLogRepository, source string, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		transport: transport,
		log:       log,
		source:    source,
		logger:    logger.With("component", "broadcast"),
	}
}

// Attach subscribes the broadcaster to every forwarded event on b's
// bus. Each emission is sent over the transport first, then appended
// to the audit log.
func (b *Broadcaster) Attach(eventBus *bus.Bus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range forwarded {
		b.unsubs = append(b.unsubs, eventBus.Subscribe(name, func(ctx context.Context, payload any) error {
			return b.forward(ctx, name, payload)
		}))
	}
}

func (b *Broadcaster) forward(ctx context.Context, name string, payload any) error {
	event := domain.SyncEvent{
		Type:      name,
		Data:      payload,
		Timestamp: time.Now().UTC(),
		Source:    b.source,
	}

	if err := b.transport.Send(ctx, event); err != nil {
		metrics.SyncEventsSentTotal.WithLabelValues(name, "error").Inc()
		b.logger.ErrorContext(ctx, "broadcast send", "type", name, "error", err)
	} else {
		metrics.SyncEventsSentTotal.WithLabelValues(name, "ok").Inc()
	}

	if err := b.log.Append(ctx, event, LogLimit); err != nil {
		return err
	}
	return nil
}

// Listen attaches fn as a receiver for envelopes from other contexts.
// Envelopes carrying our own source id are dropped.
func (b *Broadcaster) Listen(ctx context.Context, fn func(domain.SyncEvent)) error {
	stop, err := b.transport.Listen(ctx, func(event domain.SyncEvent) {
		if event.Source == b.source {
			return
		}
		metrics.SyncEventsReceivedTotal.WithLabelValues(event.Type).Inc()
		fn(event)
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.stops = append(b.stops, stop)
	b.mu.Unlock()
	return nil
}

// Close detaches all bus subscriptions and receivers and closes the
// transport. Safe to call more than once.
func (b *Broadcaster) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		unsubs, stops := b.unsubs, b.stops
		b.unsubs, b.stops = nil, nil
		b.mu.Unlock()

		for _, unsub := range unsubs {
			unsub()
		}
		for _, stop := range stops {
			stop()
		}
		err = b.transport.Close()
	})
	return err
}

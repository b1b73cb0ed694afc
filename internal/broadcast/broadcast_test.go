package broadcast_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/aidarbekov/walletd/internal/broadcast"
	"github.com/aidarbekov/walletd/internal/bus"
	"github.com/aidarbekov/walletd/internal/domain"
)

// ---- fakes ----

type fakeTransport struct {
	mu       sync.Mutex
	sent     []domain.SyncEvent
	sendErr  error
	receiver func(domain.SyncEvent)
	closed   int
	stopped  int
}

func (t *fakeTransport) Send(_ context.Context, event domain.SyncEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, event)
	return nil
}

func (t *fakeTransport) Listen(_ context.Context, fn func(domain.SyncEvent)) (func(), error) {
	t.receiver = fn
	return func() { t.stopped++ }, nil
}

func (t *fakeTransport) Close() error {
	t.closed++
	return nil
}

func (t *fakeTransport) sentEvents() []domain.SyncEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.SyncEvent(nil), t.sent...)
}

type fakeSyncLog struct {
	mu      sync.Mutex
	entries []domain.SyncEvent
	limits  []int
	err     error
}

func (l *fakeSyncLog) Append(_ context.Context, event domain.SyncEvent, limit int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append([]domain.SyncEvent{event}, l.entries...)
	l.limits = append(l.limits, limit)
	return nil
}

func (l *fakeSyncLog) Recent(_ context.Context, limit int) ([]domain.SyncEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) > limit {
		return l.entries[:limit], nil
	}
	return l.entries, nil
}

// ---- helpers ----

const testSource = "proc-a"

func newBroadcaster(t *fakeTransport, l *fakeSyncLog) (*broadcast.Broadcaster, *bus.Bus) {
	logger := slog.Default()
	b := broadcast.New(t, l, testSource, logger)
	eventBus := bus.New(logger)
	b.Attach(eventBus)
	return b, eventBus
}

// ---- tests ----

func TestForward_SendsEnvelopeAndLogs(t *testing.T) {
	transport := &fakeTransport{}
	log := &fakeSyncLog{}
	_, eventBus := newBroadcaster(transport, log)

	token := &domain.Token{Hash: "h1", Balance: 10}
	eventBus.Emit(context.Background(), domain.EventTokenCreated, token)

	sent := transport.sentEvents()
	if len(sent) != 1 {
		t.Fatalf("sent %d envelopes, want 1", len(sent))
	}
	env := sent[0]
	if env.Type != domain.EventTokenCreated {
		t.Errorf("type = %q, want %q", env.Type, domain.EventTokenCreated)
	}
	if env.Source != testSource {
		t.Errorf("source = %q, want %q", env.Source, testSource)
	}
	if env.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	if len(log.entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(log.entries))
	}
	if log.limits[0] != broadcast.LogLimit {
		t.Errorf("log limit = %d, want %d", log.limits[0], broadcast.LogLimit)
	}
}

func TestForward_EmissionOrderPreserved(t *testing.T) {
	transport := &fakeTransport{}
	_, eventBus := newBroadcaster(transport, &fakeSyncLog{})

	ctx := context.Background()
	eventBus.Emit(ctx, domain.EventTokenCreated, &domain.Token{Hash: "a"})
	eventBus.Emit(ctx, domain.EventTokenUpdated, &domain.Token{Hash: "a"})
	eventBus.Emit(ctx, domain.EventTokenDeleted, domain.TokenDeleted{Hash: "a"})

	sent := transport.sentEvents()
	want := []string{domain.EventTokenCreated, domain.EventTokenUpdated, domain.EventTokenDeleted}
	if len(sent) != len(want) {
		t.Fatalf("sent %d envelopes, want %d", len(sent), len(want))
	}
	for i, w := range want {
		if sent[i].Type != w {
			t.Errorf("sent[%d].Type = %q, want %q", i, sent[i].Type, w)
		}
	}
}

func TestForward_SendFailureStillLogs(t *testing.T) {
	transport := &fakeTransport{sendErr: errors.New("channel closed")}
	log := &fakeSyncLog{}
	_, eventBus := newBroadcaster(transport, log)

	eventBus.Emit(context.Background(), domain.EventTokenCreated, &domain.Token{Hash: "h"})

	if len(log.entries) != 1 {
		t.Fatalf("logged %d entries, want 1 despite send failure", len(log.entries))
	}
}

func TestForward_UnrelatedEventsIgnored(t *testing.T) {
	transport := &fakeTransport{}
	_, eventBus := newBroadcaster(transport, &fakeSyncLog{})

	eventBus.Emit(context.Background(), "something.else", nil)

	if len(transport.sentEvents()) != 0 {
		t.Fatal("unrelated event was broadcast")
	}
}

func TestListen_DropsOwnEchoes(t *testing.T) {
	transport := &fakeTransport{}
	b, _ := newBroadcaster(transport, &fakeSyncLog{})

	var received []domain.SyncEvent
	if err := b.Listen(context.Background(), func(e domain.SyncEvent) {
		received = append(received, e)
	}); err != nil {
		t.Fatalf("listen: %v", err)
	}

	transport.receiver(domain.SyncEvent{Type: domain.EventTokenCreated, Source: testSource})
	transport.receiver(domain.SyncEvent{Type: domain.EventTokenCreated, Source: "proc-b"})

	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	if received[0].Source != "proc-b" {
		t.Errorf("source = %q, want proc-b", received[0].Source)
	}
}

func TestClose_IdempotentAndDetaches(t *testing.T) {
	transport := &fakeTransport{}
	log := &fakeSyncLog{}
	b, eventBus := newBroadcaster(transport, log)

	if err := b.Listen(context.Background(), func(domain.SyncEvent) {}); err != nil {
		t.Fatalf("listen: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if transport.closed != 1 {
		t.Errorf("transport closed %d times, want 1", transport.closed)
	}
	if transport.stopped != 1 {
		t.Errorf("receiver stopped %d times, want 1", transport.stopped)
	}

	// Events after Close must not be forwarded.
	eventBus.Emit(context.Background(), domain.EventTokenCreated, &domain.Token{Hash: "h"})
	if len(transport.sentEvents()) != 0 {
		t.Fatal("event forwarded after Close")
	}
}

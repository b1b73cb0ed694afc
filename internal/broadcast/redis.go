package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ChannelName is shared by every walletd process on the host.
const ChannelName = "walletd.sync.v1"

// RedisTransport sends envelopes over a Redis pub/sub channel. Redis
// preserves publish order per connection, so envelopes from one sender
// arrive FIFO.
type RedisTransport struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisTransport connects and verifies the connection. An error here
// makes the caller fall back to the file transport.
func NewRedisTransport(addr string, logger *slog.Logger) (*RedisTransport, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisTransport{
		client: client,
		logger: logger.With("component", "redis_transport"),
	}, nil
}

func (t *RedisTransport) Send(ctx context.Context, event domain.SyncEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode sync event: %w", err)
	}
	if err := t.client.Publish(ctx, ChannelName, payload).Err(); err != nil {
		return fmt.Errorf("publish sync event: %w", err)
	}
	return nil
}

func (t *RedisTransport) Listen(ctx context.Context, fn func(domain.SyncEvent)) (func(), error) {
	sub := t.client.Subscribe(ctx, ChannelName)

	// Force the subscription before returning so no envelope published
	// after Listen is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ChannelName, err)
	}

	go func() {
		for msg := range sub.Channel() {
			var event domain.SyncEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				t.logger.Warn("drop malformed sync event", "error", err)
				continue
			}
			fn(event)
		}
	}()

	return func() { sub.Close() }, nil
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

// Ping satisfies health.Pinger.
func (t *RedisTransport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

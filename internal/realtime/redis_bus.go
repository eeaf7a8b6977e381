// AngelaMos | 2026
// redis_bus.go

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBus relays signals between instances over Redis PUBLISH/SUBSCRIBE.
type RedisBus struct {
	client  *redis.Client
	channel string
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, s Signal) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, fn Handler) error {
	pubsub := b.client.Subscribe(ctx, b.channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close() //nolint:errcheck // subscription never became active
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer pubsub.Close() //nolint:errcheck // best-effort unsubscribe

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var s Signal
				if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
					slog.Warn("discarding malformed signal",
						"channel", msg.Channel,
						"error", err,
					)
					continue
				}
				fn(ctx, s)
			}
		}
	}()

	return nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis bus ping: %w", err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBus) Close() error {
	return nil
}

package redis

import (
	"context"

	"github.com/upgrd-hub/progression-engine/internal/infrastructure/messaging"
)

// PubSubAdapter bridges the Cache client to the event bus transport.
type PubSubAdapter struct {
	cache *Cache
}

// Compile-time interface check.
var _ messaging.PubSubClient = (*PubSubAdapter)(nil)

// NewPubSubAdapter creates a Pub/Sub transport backed by the cache client.
func NewPubSubAdapter(cache *Cache) *PubSubAdapter {
	return &PubSubAdapter{cache: cache}
}

// Publish sends a message to the channel.
func (a *PubSubAdapter) Publish(ctx context.Context, channel string, message interface{}) error {
	return a.cache.Publish(ctx, channel, message)
}

// Subscribe listens on the given channels until ctx is cancelled.
func (a *PubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.PubSubMessage, error) {
	sub := a.cache.Subscribe(ctx, channels...)

	// Confirm the subscription before handing back the channel.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.PubSubMessage, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				out <- messaging.PubSubMessage{
					Channel: msg.Channel,
					Payload: msg.Payload,
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op: subscription lifetimes are bound to their contexts
// and the underlying client is owned by the Cache.
func (a *PubSubAdapter) Close() error {
	return nil
}

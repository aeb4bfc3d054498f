package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/coursehub/coursehub-platform/internal/infrastructure/messaging"
)

// PubSub adapts a go-redis client to messaging.PubSub.
type PubSub struct {
	client redis.UniversalClient
}

// NewPubSub creates a PubSub over client.
func NewPubSub(client redis.UniversalClient) *PubSub {
	return &PubSub{client: client}
}

// Publish publishes message to channel.
func (p *PubSub) Publish(ctx context.Context, channel string, message []byte) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe subscribes to channels. The returned channel is closed when ctx
// is cancelled; the subscription is confirmed before Subscribe returns.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.PubSubMessage, error) {
	sub := p.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.PubSubMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.PubSubMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

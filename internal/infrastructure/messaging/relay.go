package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coursehub/coursehub-platform/internal/domain/chat"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHAT RELAY
// Рассылка сообщений чата подписчикам группы module_{id}.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultChatChannelPrefix is prepended to the group key to form the Redis channel.
const DefaultChatChannelPrefix = "coursehub:chat:"

// RedisRelay publishes chat payloads to a Redis channel per group.
type RedisRelay struct {
	client PubSub
	prefix string
}

// NewRedisRelay creates a relay. An empty prefix means DefaultChatChannelPrefix.
func NewRedisRelay(client PubSub, prefix string) *RedisRelay {
	if prefix == "" {
		prefix = DefaultChatChannelPrefix
	}
	return &RedisRelay{client: client, prefix: prefix}
}

// GroupSend implements chat.Relay.
func (r *RedisRelay) GroupSend(ctx context.Context, group string, payload chat.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chat payload: %w", err)
	}
	if err := r.client.Publish(ctx, r.Channel(group), data); err != nil {
		return fmt.Errorf("publish to %s: %w", group, err)
	}
	return nil
}

// Channel returns the Redis channel of a group.
func (r *RedisRelay) Channel(group string) string {
	return r.prefix + group
}

// Listen subscribes to a group and decodes payloads until ctx is cancelled.
func (r *RedisRelay) Listen(ctx context.Context, group string) (<-chan chat.Payload, error) {
	messages, err := r.client.Subscribe(ctx, r.Channel(group))
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", group, err)
	}
	out := make(chan chat.Payload)
	go func() {
		defer close(out)
		for msg := range messages {
			if msg.Err != nil {
				continue
			}
			var p chat.Payload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				continue
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ErrSubscriberSlow is reported when a local subscriber's buffer is full.
var ErrSubscriberSlow = errors.New("chat subscriber is not keeping up")

// MemoryRelay delivers payloads to in-process subscribers.
// Slow subscribers drop messages instead of blocking the sender.
type MemoryRelay struct {
	mu     sync.RWMutex
	groups map[string][]chan chat.Payload
	buffer int
}

// NewMemoryRelay creates a relay whose subscriber channels hold buffer payloads.
func NewMemoryRelay(buffer int) *MemoryRelay {
	if buffer <= 0 {
		buffer = 16
	}
	return &MemoryRelay{groups: make(map[string][]chan chat.Payload), buffer: buffer}
}

// Subscribe returns a channel of payloads for group and a function that cancels it.
func (r *MemoryRelay) Subscribe(group string) (<-chan chat.Payload, func()) {
	ch := make(chan chat.Payload, r.buffer)

	r.mu.Lock()
	r.groups[group] = append(r.groups[group], ch)
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			subs := r.groups[group]
			for i, s := range subs {
				if s == ch {
					r.groups[group] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// GroupSend implements chat.Relay.
func (r *MemoryRelay) GroupSend(ctx context.Context, group string, payload chat.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var dropped bool
	for _, ch := range r.groups[group] {
		select {
		case ch <- payload:
		default:
			dropped = true
		}
	}
	if dropped {
		return ErrSubscriberSlow
	}
	return nil
}

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/retry"
)

// fakePubSub is an in-process stand-in for Redis Pub/Sub.
type fakePubSub struct {
	mu      sync.Mutex
	subs    map[string][]chan PubSubMessage
	sent    []PubSubMessage
	failPub error
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{subs: make(map[string][]chan PubSubMessage)}
}

func (f *fakePubSub) Publish(_ context.Context, channel string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPub != nil {
		return f.failPub
	}
	msg := PubSubMessage{Channel: channel, Payload: message}
	f.sent = append(f.sent, msg)
	for _, ch := range f.subs[channel] {
		ch <- msg
	}
	return nil
}

func (f *fakePubSub) Subscribe(_ context.Context, channels ...string) (<-chan PubSubMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan PubSubMessage, 16)
	for _, c := range channels {
		f.subs[c] = append(f.subs[c], ch)
	}
	return ch, nil
}

func (f *fakePubSub) inject(channel string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[channel] {
		ch <- PubSubMessage{Channel: channel, Payload: payload}
	}
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventTestSubmitted, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(shared.NewTestSubmittedEvent(1, "u-1", 1, 2)))
	require.NoError(t, bus.Publish(shared.NewLessonStartedEvent(1, "u-1", 3, time.Now())))

	assert.Equal(t, []shared.EventType{shared.EventTestSubmitted}, typed)
	assert.Equal(t, []shared.EventType{shared.EventTestSubmitted, shared.EventLessonStarted}, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncRecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var calls atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		calls.Add(1)
		panic("boom")
	}))
	require.NoError(t, bus.Publish(shared.NewTestGeneratedEvent(1, "u-1", 2, 1, 3)))
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().HandlerFailures)
	assert.ErrorIs(t, bus.Publish(shared.NewTestGeneratedEvent(1, "u-1", 2, 1, 3)), ErrEventBusClosed)
}

func TestRedisEventBus_DeliversRemoteEventsOnly(t *testing.T) {
	ps := newFakePubSub()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: ps, InstanceID: "a"})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan shared.Event, 4)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		received <- e
		return nil
	}))

	local := shared.NewCertificateIssuedEvent(5, "u-1", "certificate_5.pdf", time.Now())
	local.BaseEvent = local.BaseEvent.WithCorrelationID("req-9")
	require.NoError(t, bus.Publish(local))

	got := <-received
	assert.Equal(t, shared.EventCertificateIssued, got.EventType())

	require.Len(t, ps.sent, 1)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal(ps.sent[0].Payload, &env))
	assert.Equal(t, "a", env.InstanceID)
	assert.Equal(t, "req-9", env.CorrelationID)
	assert.Equal(t, "5", env.AggregateID)

	env.InstanceID = "b"
	remote, err := json.Marshal(env)
	require.NoError(t, err)
	ps.inject("coursehub:events", remote)

	select {
	case e := <-received:
		re, ok := e.(*RemoteEvent)
		require.True(t, ok)
		assert.Equal(t, "req-9", re.Correlation())
		assert.Equal(t, "certificate_5.pdf", re.Payload()["certificate_file"])
	case <-time.After(2 * time.Second):
		t.Fatal("remote event not delivered")
	}

	select {
	case e := <-received:
		t.Fatalf("unexpected extra event %s", e.EventType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisEventBus_PublishFailureStillDeliversLocally(t *testing.T) {
	ps := newFakePubSub()
	ps.failPub = errors.New("redis down")
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         ps,
		LocalBusConfig: InMemoryEventBusConfig{AsyncMode: false},
	})
	require.NoError(t, err)
	defer bus.Close()

	var n int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { n++; return nil }))
	require.NoError(t, bus.Publish(shared.NewChatMessageSentEvent(1, 2, "u-1")))
	assert.Equal(t, 1, n)
}

func TestRedisRelay(t *testing.T) {
	ps := newFakePubSub()
	relay := NewRedisRelay(ps, "")
	group := chat.GroupKey(7)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listen, err := relay.Listen(ctx, group)
	require.NoError(t, err)

	reply := int64(3)
	payload := chat.Payload{Message: "hi", User: "alice", Type: 1, Reply: &reply}
	require.NoError(t, relay.GroupSend(ctx, group, payload))

	assert.Equal(t, "coursehub:chat:module_7", ps.sent[0].Channel)
	assert.JSONEq(t, `{"message":"hi","user":"alice","type":1,"reply":3}`, string(ps.sent[0].Payload))
	assert.Equal(t, payload, <-listen)

	ps.failPub = errors.New("redis down")
	assert.Error(t, relay.GroupSend(ctx, group, payload))
}

func TestMemoryRelay(t *testing.T) {
	relay := NewMemoryRelay(1)
	sub, cancel := relay.Subscribe("module_1")
	other, cancelOther := relay.Subscribe("module_2")
	defer cancelOther()

	p := chat.Payload{Message: "hello", User: "bob", Type: 2}
	require.NoError(t, relay.GroupSend(context.Background(), "module_1", p))
	assert.Equal(t, p, <-sub)
	assert.Empty(t, other)

	require.NoError(t, relay.GroupSend(context.Background(), "module_1", p))
	assert.ErrorIs(t, relay.GroupSend(context.Background(), "module_1", p), ErrSubscriberSlow)

	cancel()
	cancel()
	require.NoError(t, relay.GroupSend(context.Background(), "module_1", p))
}

func fastRetrier() *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(time.Millisecond),
		retry.WithRetryIf(func(error) bool { return true }),
	)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()
	d := NewDispatcher(DispatcherConfig{Subscriber: bus, Retrier: fastRetrier()})
	defer d.Stop()

	var calls int
	require.NoError(t, d.Register(shared.EventTestSubmitted, "flaky", func(shared.Event) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewTestSubmittedEvent(1, "u-1", 1, 2)))

	assert.Equal(t, 3, calls)
	assert.Equal(t, DispatcherStats{Dispatched: 1, Retries: 2}, d.Metrics())
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_DeadLettersExhaustedAndPermanent(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()
	d := NewDispatcher(DispatcherConfig{Subscriber: bus, Retrier: fastRetrier(), DeadLetterQueueSize: 1})
	defer d.Stop()

	var panics, permanent int
	require.NoError(t, d.RegisterAll("panicky", func(shared.Event) error {
		panics++
		panic("boom")
	}))
	require.NoError(t, d.Register(shared.EventLessonStarted, "permanent", func(shared.Event) error {
		permanent++
		return retry.Permanent(errors.New("bad payload"))
	}))

	require.NoError(t, bus.Publish(shared.NewTestSubmittedEvent(1, "u-1", 1, 2)))
	assert.Equal(t, 3, panics)
	require.Equal(t, 1, d.DeadLetterQueue().Size())
	assert.Equal(t, "panicky", d.DeadLetterQueue().Entries()[0].HandlerName)

	require.NoError(t, bus.Publish(shared.NewLessonStartedEvent(1, "u-1", 3, time.Now())))
	assert.Equal(t, 1, permanent)

	// The queue keeps only the newest entry.
	entry, ok := d.DeadLetterQueue().Pop()
	require.True(t, ok)
	assert.Equal(t, shared.EventLessonStarted, entry.Event.EventType())
	_, ok = d.DeadLetterQueue().Pop()
	assert.False(t, ok)
	assert.Equal(t, int64(3), d.Metrics().Failures)
}

func TestDispatcher_Redeliver(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()
	d := NewDispatcher(DispatcherConfig{Subscriber: bus, Retrier: fastRetrier()})
	defer d.Stop()

	healthy := false
	var delivered []shared.EventType
	require.NoError(t, d.Register(shared.EventTestSubmitted, "downstream", func(e shared.Event) error {
		if !healthy {
			return errors.New("downstream unavailable")
		}
		delivered = append(delivered, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewTestSubmittedEvent(1, "u-1", 1, 2)))
	require.NoError(t, bus.Publish(shared.NewTestSubmittedEvent(2, "u-1", 2, 2)))
	require.Equal(t, 2, d.DeadLetterQueue().Size())

	ok, failed := d.Redeliver(0)
	assert.Equal(t, 0, ok)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 2, d.DeadLetterQueue().Size())

	healthy = true
	ok, failed = d.Redeliver(1)
	assert.Equal(t, 1, ok)
	assert.Zero(t, failed)
	assert.Equal(t, 1, d.DeadLetterQueue().Size())
	assert.Len(t, delivered, 1)
}

func TestDispatcher_RegisterLocalSkipsPeerEvents(t *testing.T) {
	ps := newFakePubSub()
	origin, err := NewRedisEventBus(RedisEventBusConfig{Client: ps, InstanceID: "a"})
	require.NoError(t, err)
	defer origin.Close()
	peer, err := NewRedisEventBus(RedisEventBusConfig{Client: ps, InstanceID: "b"})
	require.NoError(t, err)
	defer peer.Close()

	type counters struct{ local, all atomic.Int32 }
	register := func(bus shared.EventSubscriber, c *counters) *Dispatcher {
		d := NewDispatcher(DispatcherConfig{Subscriber: bus, Retrier: fastRetrier()})
		require.NoError(t, d.RegisterLocal(shared.EventTestSubmitted, "on_test_submitted", func(e shared.Event) error {
			if _, ok := e.(shared.TestSubmittedEvent); !ok {
				return errors.New("unexpected event")
			}
			c.local.Add(1)
			return nil
		}))
		require.NoError(t, d.RegisterAll("audit_log", func(shared.Event) error {
			c.all.Add(1)
			return nil
		}))
		return d
	}
	var a, b counters
	da := register(origin, &a)
	defer da.Stop()
	db := register(peer, &b)
	defer db.Stop()

	require.NoError(t, origin.Publish(shared.NewTestSubmittedEvent(1, "u-1", 1, 2)))

	require.Eventually(t, func() bool {
		return a.local.Load() == 1 && b.all.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, b.local.Load())
	assert.Zero(t, db.DeadLetterQueue().Size())
	assert.Zero(t, db.Metrics().Failures)
	assert.True(t, shared.IsRemote(&RemoteEvent{}))
	assert.False(t, shared.IsRemote(shared.NewTestSubmittedEvent(1, "u-1", 1, 2)))
}

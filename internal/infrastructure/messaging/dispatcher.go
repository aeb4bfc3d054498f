package messaging

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
	"github.com/coursehub/coursehub-platform/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher subscribes named handlers to a bus. Each delivery is retried
// with backoff; a handler that still fails lands in the dead letter queue.
// Handlers return retry.Permanent to skip further attempts.
type Dispatcher struct {
	subscriber shared.EventSubscriber
	retrier    *retry.Retrier
	deadLetter *DeadLetterQueue
	log        *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	metrics DispatcherMetrics
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	Subscriber shared.EventSubscriber

	// Retrier defaults to DefaultHandlerRetrier.
	Retrier *retry.Retrier

	// DeadLetterQueueSize bounds the DLQ (default 1000).
	DeadLetterQueueSize int

	Logger *logger.Logger
}

// DefaultHandlerRetrier retries any non-permanent handler error.
func DefaultHandlerRetrier() *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(100*time.Millisecond),
		retry.WithMaxDelay(2*time.Second),
		retry.WithMultiplier(2.0),
		retry.WithJitter(0.1),
		retry.WithRetryIf(func(error) bool { return true }),
	)
}

// NewDispatcher creates a dispatcher over the given subscriber.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Retrier == nil {
		cfg.Retrier = DefaultHandlerRetrier()
	}
	if cfg.DeadLetterQueueSize <= 0 {
		cfg.DeadLetterQueueSize = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		subscriber: cfg.Subscriber,
		retrier:    cfg.Retrier,
		deadLetter: NewDeadLetterQueue(cfg.DeadLetterQueueSize),
		log:        cfg.Logger.With(logger.Component("dispatcher")),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register subscribes handler to one event type under name.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if err := d.subscriber.Subscribe(eventType, d.wrap(name, handler)); err != nil {
		return fmt.Errorf("dispatcher: register %s: %w", name, err)
	}
	return nil
}

// RegisterLocal is Register restricted to events published by this instance.
func (d *Dispatcher) RegisterLocal(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.Register(eventType, name, func(event shared.Event) error {
		if shared.IsRemote(event) {
			return nil
		}
		return handler(event)
	})
}

// RegisterAll subscribes handler to every event under name.
func (d *Dispatcher) RegisterAll(name string, handler shared.EventHandler) error {
	if err := d.subscriber.SubscribeAll(d.wrap(name, handler)); err != nil {
		return fmt.Errorf("dispatcher: register %s: %w", name, err)
	}
	return nil
}

func (d *Dispatcher) wrap(name string, handler shared.EventHandler) shared.EventHandler {
	var wrapped shared.EventHandler
	wrapped = func(event shared.Event) error {
		d.metrics.dispatched.Add(1)

		attempts := 0
		err := d.retrier.Do(d.ctx, func(context.Context) error {
			attempts++
			if attempts > 1 {
				d.metrics.retries.Add(1)
			}
			return safeCall(handler, event)
		})
		if err == nil {
			return nil
		}

		d.metrics.failures.Add(1)
		d.deadLetter.Add(DeadLetterEntry{
			Event:       event,
			HandlerName: name,
			Error:       err,
			Attempts:    attempts,
			FailedAt:    time.Now(),
			deliver:     wrapped,
		})
		d.log.Error("event handler failed",
			logger.String("handler", name),
			logger.EventType(string(event.EventType())),
			logger.Int("attempts", attempts),
			logger.Err(err),
		)
		return fmt.Errorf("handler %s failed after %d attempts: %w", name, attempts, err)
	}
	return wrapped
}

// safeCall turns a handler panic into an error.
func safeCall(handler shared.EventHandler, event shared.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(event)
}

// Redeliver replays up to limit dead-lettered deliveries. Entries that fail
// again go back to the queue.
func (d *Dispatcher) Redeliver(limit int) (delivered, failed int) {
	if n := d.deadLetter.Size(); limit <= 0 || limit > n {
		limit = n
	}
	for i := 0; i < limit; i++ {
		if d.ctx.Err() != nil {
			return delivered, failed
		}
		entry, ok := d.deadLetter.Pop()
		if !ok {
			break
		}
		if entry.deliver == nil {
			continue
		}
		if err := entry.deliver(entry.Event); err != nil {
			failed++
			continue
		}
		delivered++
	}
	return delivered, failed
}

// Stop aborts pending retries.
func (d *Dispatcher) Stop() error {
	d.cancel()
	return nil
}

// DeadLetterQueue returns the dead letter queue.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetter
}

// Metrics returns a snapshot of dispatcher counters.
func (d *Dispatcher) Metrics() DispatcherStats {
	return DispatcherStats{
		Dispatched: d.metrics.dispatched.Load(),
		Retries:    d.metrics.retries.Load(),
		Failures:   d.metrics.failures.Load(),
	}
}

// DispatcherMetrics counts deliveries.
type DispatcherMetrics struct {
	dispatched atomic.Int64
	retries    atomic.Int64
	failures   atomic.Int64
}

// DispatcherStats is a point-in-time copy of DispatcherMetrics.
type DispatcherStats struct {
	Dispatched int64
	Retries    int64
	Failures   int64
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents a failed event.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time

	deliver shared.EventHandler
}

// DeadLetterQueue keeps the most recent failed deliveries.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry, dropping the oldest when full.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of all entries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetterEntry(nil), q.entries...)
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Pop removes and returns the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

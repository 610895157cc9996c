// Package events implements the in-process pub/sub fan-out for pipeline
// progress. Delivery is at-most-once and best-effort: there is no replay,
// no history, and no cross-process broadcast.
package events

import (
	"context"
	"sort"
	"sync"

	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/pkg/models"
)

// SnapshotFunc reports the current run snapshot and whether a run is active.
// The bus uses it to greet observers that attach mid-run.
type SnapshotFunc func() (models.Job, bool)

// Bus fans pipeline events out to registered subscribers. A misbehaving
// subscriber never affects the publisher or its peers: every delivery is
// isolated, and a panicking callback only loses its own event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]func(models.PipelineEvent)
	nextID int

	snapshot SnapshotFunc

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewBus creates an empty bus. Logger and metrics may be nil.
func NewBus(logger *observability.Logger, metrics *observability.Metrics) *Bus {
	return &Bus{
		subs:    make(map[int]func(models.PipelineEvent)),
		logger:  logger,
		metrics: metrics,
	}
}

// SetSnapshotProvider wires the run-state source used for reconnect greetings.
func (b *Bus) SetSnapshotProvider(fn SnapshotFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = fn
}

// Subscribe registers a callback and returns its unsubscribe function.
// Unsubscribing is idempotent. If a run is active at subscribe time the
// callback immediately receives a synthetic reconnect event carrying the
// current counters, so late dashboards do not render from zero.
func (b *Bus) Subscribe(fn func(models.PipelineEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	snapshot := b.snapshot
	b.mu.Unlock()

	if snapshot != nil {
		if job, active := snapshot(); active {
			b.deliver(fn, models.NewReconnectEvent(job))
		}
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers an event to every current subscriber in subscription
// order. It never blocks on a subscriber and never returns an error.
func (b *Bus) Publish(e models.PipelineEvent) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	callbacks := make([]func(models.PipelineEvent), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range callbacks {
		b.deliver(fn, e)
	}

	if b.metrics != nil {
		b.metrics.RecordEvent(string(e.Type))
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) deliver(fn func(models.PipelineEvent), e models.PipelineEvent) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Warn(context.Background(), "event subscriber panicked",
				"event_type", string(e.Type),
				"panic", r,
			)
		}
	}()
	fn(e)
}

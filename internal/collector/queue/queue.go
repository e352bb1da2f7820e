package queue

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/logsift/logsift/internal/collector/model"
	"go.uber.org/zap"
)

type Policy string

const (
	// PolicyBlock applies backpressure: Enqueue blocks the producer until
	// space is available. No events are lost.
	PolicyBlock Policy = "block"
	// PolicyDropOldest keeps the queue bounded by evicting the oldest
	// queued event when full.
	PolicyDropOldest Policy = "drop_oldest"
)

// Queue is the bounded raw-event queue between collector inputs and the
// pipeline workers. All inputs share one queue.
type Queue struct {
	events  chan model.RawEvent
	policy  Policy
	dropped atomic.Uint64
	logger  *zap.Logger
}

func New(capacity int, policy Policy, logger *zap.Logger) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity must be positive, got %d", capacity)
	}
	switch policy {
	case PolicyBlock, PolicyDropOldest:
	default:
		return nil, fmt.Errorf("unknown queue policy %q", policy)
	}
	return &Queue{
		events: make(chan model.RawEvent, capacity),
		policy: policy,
		logger: logger,
	}, nil
}

// Enqueue adds an event according to the configured overflow policy. Under
// PolicyBlock it returns only once the event is queued or the context is
// cancelled.
func (q *Queue) Enqueue(ctx context.Context, event model.RawEvent) error {
	if q.policy == PolicyBlock {
		select {
		case q.events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case q.events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		select {
		case <-q.events:
			q.dropped.Add(1)
		default:
		}
	}
}

// Dequeue removes the next event, blocking until one is available, the queue
// is closed, or the context is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (model.RawEvent, bool) {
	select {
	case event, ok := <-q.events:
		return event, ok
	case <-ctx.Done():
		return model.RawEvent{}, false
	}
}

// Close stops the queue. Producers must not Enqueue after Close.
func (q *Queue) Close() {
	close(q.events)
}

func (q *Queue) Len() int {
	return len(q.events)
}

// Dropped reports how many events the drop-oldest policy has evicted.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/gatherspace/realtime-service/internal/event"
	"github.com/gatherspace/realtime-service/internal/metrics"
)

// Pending holds per-user FIFO queues of events awaiting a poll. The queue is
// drain-on-read: a drain atomically removes and returns the whole queue.
// Queues are bounded; on overflow the oldest event is dropped, which makes
// polling delivery weaker than at-least-once within one process lifetime.
type Pending struct {
	mu      sync.Mutex
	max     int
	queues  map[string][]event.Event
	waiters map[string]chan struct{}
}

func NewPending(maxPerUser int) *Pending {
	if maxPerUser <= 0 {
		maxPerUser = 500
	}
	return &Pending{
		max:     maxPerUser,
		queues:  make(map[string][]event.Event),
		waiters: make(map[string]chan struct{}),
	}
}

// Push appends an event to the user's queue, dropping the oldest entry when
// the bound is hit, and wakes any bounded-wait drain.
func (p *Pending) Push(userID string, ev event.Event) {
	p.mu.Lock()
	q := append(p.queues[userID], ev)
	if len(q) > p.max {
		q = q[len(q)-p.max:]
		metrics.EventsDropped.Inc()
	}
	p.queues[userID] = q
	w := p.waiters[userID]
	p.mu.Unlock()

	metrics.EventsQueued.Inc()
	if w != nil {
		select {
		case w <- struct{}{}:
		default:
		}
	}
}

// Drain atomically pops and returns the user's entire queue. Never nil.
func (p *Pending) Drain(userID string) []event.Event {
	p.mu.Lock()
	q := p.queues[userID]
	delete(p.queues, userID)
	p.mu.Unlock()
	if q == nil {
		q = []event.Event{}
	}
	return q
}

// DrainWait drains immediately when events are pending; otherwise it blocks
// until an event arrives, maxWait elapses, or ctx is done. The wait is
// bounded so a long-poll request never outlives serverless execution limits.
// The empty check and waiter registration happen under one lock so a
// concurrent Push cannot slip between them unseen.
func (p *Pending) DrainWait(ctx context.Context, userID string, maxWait time.Duration) []event.Event {
	p.mu.Lock()
	if q := p.queues[userID]; len(q) > 0 {
		delete(p.queues, userID)
		p.mu.Unlock()
		return q
	}
	w, ok := p.waiters[userID]
	if !ok {
		w = make(chan struct{}, 1)
		p.waiters[userID] = w
	}
	p.mu.Unlock()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case <-w:
	case <-timer.C:
	case <-ctx.Done():
	}

	p.mu.Lock()
	if p.waiters[userID] == w {
		delete(p.waiters, userID)
	}
	q := p.queues[userID]
	delete(p.queues, userID)
	p.mu.Unlock()
	if q == nil {
		q = []event.Event{}
	}
	return q
}

// Len reports the user's current queue depth.
func (p *Pending) Len(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues[userID])
}

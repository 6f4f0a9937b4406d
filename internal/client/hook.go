package client

import (
	"context"
	"sync"
	"time"

	"github.com/gatherspace/realtime-service/internal/apperr"
	"github.com/gatherspace/realtime-service/internal/event"
)

// Hook is the uniform client surface over whichever transport is active.
// It owns reconnection: a dropped socket or failed poll loop is retried with
// exponential backoff and rooms are rejoined, so callers only see a stream
// of events and errors.
type Hook struct {
	factory   func() Transport
	onMessage func(event.Event)
	onError   func(error)

	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu     sync.Mutex
	tr     Transport
	rooms  map[string]bool
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Hook)

func WithBackoff(base, max time.Duration) Option {
	return func(h *Hook) {
		h.baseBackoff = base
		h.maxBackoff = max
	}
}

func OnMessage(fn func(event.Event)) Option {
	return func(h *Hook) { h.onMessage = fn }
}

func OnError(fn func(error)) Option {
	return func(h *Hook) { h.onError = fn }
}

// NewHook takes a transport factory: the transport choice is made here, at
// construction, never at call sites.
func NewHook(factory func() Transport, opts ...Option) *Hook {
	h := &Hook{
		factory:     factory,
		onMessage:   func(event.Event) {},
		onError:     func(error) {},
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
		rooms:       make(map[string]bool),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Connect starts the connect/consume/reconnect loop. It returns once the
// first connection attempt finishes so callers learn about bad configs
// immediately; later drops are retried in the background.
func (h *Hook) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.done = make(chan struct{})
	h.mu.Unlock()

	firstErr := make(chan error, 1)
	go h.run(runCtx, firstErr)
	return <-firstErr
}

func (h *Hook) run(ctx context.Context, firstErr chan<- error) {
	defer close(h.done)
	backoff := h.baseBackoff
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		tr := h.factory()
		err := tr.Connect(ctx)
		if err != nil {
			if first {
				firstErr <- err
				first = false
			}
			h.onError(err)
			if !h.sleep(ctx, backoff) {
				return
			}
			backoff = h.nextBackoff(backoff)
			continue
		}
		backoff = h.baseBackoff

		h.mu.Lock()
		h.tr = tr
		rooms := make([]string, 0, len(h.rooms))
		for id := range h.rooms {
			rooms = append(rooms, id)
		}
		h.mu.Unlock()
		if first {
			firstErr <- nil
			first = false
		}

		// ephemeral room state is gone after a drop; rebuild it explicitly
		for _, id := range rooms {
			if err := tr.Join(ctx, id); err != nil {
				h.onError(err)
			}
		}

		for ev := range tr.Events() {
			if ev.Type == event.TypeError {
				h.onError(apperr.ErrTransport)
				continue
			}
			h.onMessage(ev)
		}
		_ = tr.Close()

		h.mu.Lock()
		closed := h.closed
		h.tr = nil
		h.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}
		h.onError(apperr.ErrTransport)
		if !h.sleep(ctx, backoff) {
			return
		}
		backoff = h.nextBackoff(backoff)
	}
}

func (h *Hook) nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > h.maxBackoff {
		next = h.maxBackoff
	}
	return next
}

func (h *Hook) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (h *Hook) transport() (Transport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tr == nil {
		return nil, apperr.ErrTransport
	}
	return h.tr, nil
}

func (h *Hook) SendMessage(ctx context.Context, conversationID, content string) error {
	tr, err := h.transport()
	if err != nil {
		return err
	}
	return tr.Send(ctx, conversationID, content, nil)
}

func (h *Hook) JoinConversation(ctx context.Context, conversationID string) error {
	h.mu.Lock()
	h.rooms[conversationID] = true
	tr := h.tr
	h.mu.Unlock()
	if tr == nil {
		return apperr.ErrTransport
	}
	return tr.Join(ctx, conversationID)
}

func (h *Hook) LeaveConversation(ctx context.Context, conversationID string) error {
	h.mu.Lock()
	delete(h.rooms, conversationID)
	tr := h.tr
	h.mu.Unlock()
	if tr == nil {
		return apperr.ErrTransport
	}
	return tr.Leave(ctx, conversationID)
}

func (h *Hook) MarkRead(ctx context.Context, messageID string) error {
	tr, err := h.transport()
	if err != nil {
		return err
	}
	return tr.MarkRead(ctx, messageID)
}

func (h *Hook) Close() error {
	h.mu.Lock()
	h.closed = true
	tr := h.tr
	cancel := h.cancel
	done := h.done
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if tr != nil {
		_ = tr.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}

package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherspace/realtime-service/internal/event"
)

// fakeTransport lets tests script connections, deliveries and drops.
type fakeTransport struct {
	mu     sync.Mutex
	events chan event.Event
	joins  []string
	sends  []string
	failed bool
	closed bool
}

func (f *fakeTransport) Connect(context.Context) error {
	if f.failed {
		return assertionError("connect refused")
	}
	f.events = make(chan event.Event, 16)
	return nil
}

func (f *fakeTransport) Join(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, conversationID)
	return nil
}

func (f *fakeTransport) Leave(context.Context, string) error { return nil }

func (f *fakeTransport) Send(_ context.Context, _, content string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, content)
	return nil
}

func (f *fakeTransport) MarkRead(context.Context, string) error { return nil }

func (f *fakeTransport) Events() <-chan event.Event { return f.events }

// Close closes the events channel, matching the Transport contract: after a
// transport is closed its Events channel closes.
func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events != nil && !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeTransport) drop() { _ = f.Close() }

type assertionError string

func (e assertionError) Error() string { return string(e) }

func collect() (func(event.Event), *[]event.Event, *sync.Mutex) {
	var mu sync.Mutex
	var got []event.Event
	return func(ev event.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}, &got, &mu
}

func TestHook_DeliversEvents(t *testing.T) {
	tr := &fakeTransport{}
	onMsg, got, mu := collect()
	h := NewHook(func() Transport { return tr }, OnMessage(onMsg))
	require.NoError(t, h.Connect(context.Background()))
	defer h.Close()

	tr.events <- event.Error("boom")
	tr.events <- event.ConversationJoined("c1", "alice")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*got) >= 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// error events go to OnError, not OnMessage
	require.Len(t, *got, 1)
	assert.Equal(t, event.TypeConversationJoined, (*got)[0].Type)
}

func TestHook_ReconnectsAndRejoinsRooms(t *testing.T) {
	var mu sync.Mutex
	var transports []*fakeTransport
	factory := func() Transport {
		tr := &fakeTransport{}
		mu.Lock()
		transports = append(transports, tr)
		mu.Unlock()
		return tr
	}

	h := NewHook(factory, WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	require.NoError(t, h.Connect(context.Background()))
	defer h.Close()

	require.NoError(t, h.JoinConversation(context.Background(), "c1"))

	mu.Lock()
	first := transports[0]
	mu.Unlock()
	first.drop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(transports) >= 2
	}, time.Second, 10*time.Millisecond)

	// the replacement transport rejoined the room without caller involvement
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		second := transports[1]
		second.mu.Lock()
		defer second.mu.Unlock()
		return len(second.joins) == 1 && second.joins[0] == "c1"
	}, time.Second, 10*time.Millisecond)
}

func TestHook_FirstConnectErrorSurfaced(t *testing.T) {
	tr := &fakeTransport{failed: true}
	errs := make(chan error, 8)
	h := NewHook(func() Transport { return tr },
		WithBackoff(5*time.Millisecond, 10*time.Millisecond),
		OnError(func(err error) {
			select {
			case errs <- err:
			default:
			}
		}))
	err := h.Connect(context.Background())
	assert.Error(t, err)
	_ = h.Close()
}

func TestHook_SendGoesThroughActiveTransport(t *testing.T) {
	tr := &fakeTransport{}
	h := NewHook(func() Transport { return tr })
	require.NoError(t, h.Connect(context.Background()))
	defer h.Close()

	require.NoError(t, h.SendMessage(context.Background(), "c1", "hello"))
	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, []string{"hello"}, tr.sends)
}

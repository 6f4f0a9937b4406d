package hub

import (
	"sync"

	"github.com/gatherspace/realtime-service/internal/event"
)

// Sink is a live delivery target. Send must not block; it reports whether
// the event was accepted.
type Sink interface {
	Send(ev event.Event) bool
}

type entry struct {
	userID string
	sink   Sink
}

// Hub tracks live socket connections and their room registrations. It is the
// socket-side half of the room registry: connections register by connection
// id and join rooms, and the dispatcher asks which sinks can take a push for
// a given (conversation, user).
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*entry // connectionID -> client
	reg     *Registry
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]*entry),
		reg:     NewRegistry(),
	}
}

func (h *Hub) AddClient(connectionID, userID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connectionID] = &entry{userID: userID, sink: sink}
}

// RemoveClient unregisters the connection and clears every room it occupied.
func (h *Hub) RemoveClient(connectionID string) {
	h.mu.Lock()
	delete(h.clients, connectionID)
	h.mu.Unlock()
	h.reg.RemoveHandle(connectionID)
}

func (h *Hub) Join(conversationID, connectionID string) {
	h.reg.Join(conversationID, connectionID)
}

func (h *Hub) Leave(conversationID, connectionID string) {
	h.reg.Leave(conversationID, connectionID)
}

// SinksFor returns the live sinks registered in the conversation's room that
// belong to the given user. Empty means the user has no live path and the
// dispatcher should fall back to queueing.
func (h *Hub) SinksFor(conversationID, userID string) []Sink {
	handles := h.reg.MembersOf(conversationID)
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Sink
	for _, id := range handles {
		if e, ok := h.clients[id]; ok && e.userID == userID {
			out = append(out, e.sink)
		}
	}
	return out
}

// BroadcastRoom pushes an event to every sink registered in the room,
// regardless of user. Used by the cross-instance relay, which must not touch
// pending queues (the owning instance already queued for offline members).
func (h *Hub) BroadcastRoom(conversationID string, ev event.Event) {
	handles := h.reg.MembersOf(conversationID)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range handles {
		if e, ok := h.clients[id]; ok {
			e.sink.Send(ev)
		}
	}
}

// IsUserConnected reports whether any live connection belongs to the user.
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.clients {
		if e.userID == userID {
			return true
		}
	}
	return false
}

package hub

import "sync"

// Registry is the process-local record of which handles are interested in a
// conversation. A handle is a connection id on the socket side and a user id
// on the polling side; both adapters get their own Registry instance.
// Nothing here is persisted — clients rebuild state by rejoining.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]bool // conversationID -> set of handles
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]bool)}
}

// Join is idempotent; joining twice is a no-op.
func (r *Registry) Join(conversationID, handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[conversationID]; !ok {
		r.rooms[conversationID] = make(map[string]bool)
	}
	r.rooms[conversationID][handle] = true
}

// Leave on a handle not present is a no-op.
func (r *Registry) Leave(conversationID, handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.rooms[conversationID]; ok {
		delete(members, handle)
		if len(members) == 0 {
			delete(r.rooms, conversationID)
		}
	}
}

// RemoveHandle drops the handle from every room it occupies. Used when a
// socket disconnects.
func (r *Registry) RemoveHandle(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, members := range r.rooms {
		delete(members, handle)
		if len(members) == 0 {
			delete(r.rooms, id)
		}
	}
}

func (r *Registry) MembersOf(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[conversationID]
	out := make([]string, 0, len(members))
	for h := range members {
		out = append(out, h)
	}
	return out
}

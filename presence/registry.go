package presence

import (
	"sort"
	"sync"

	"livecodeshare-server/core"

	"github.com/sirupsen/logrus"
)

// Registry tracks live connections and the rooms each one has joined.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnectionID]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnectionID]map[string]struct{})}
}

// Connect admits a connection and reports whether it was new.
func (r *Registry) Connect(id core.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		return false
	}
	r.conns[id] = make(map[string]struct{})
	logrus.WithField("connection_id", id).Debug("connection admitted")
	return true
}

// Disconnect discards the connection and returns the rooms it had joined.
// Only the first call for an id returns anything.
func (r *Registry) Disconnect(id core.ConnectionID) ([]string, bool) {
	r.mu.Lock()
	rooms, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return sortedKeys(rooms), true
}

// AddRoom records a room membership. It reports false when the connection
// is unknown, e.g. it already disconnected.
func (r *Registry) AddRoom(id core.ConnectionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms, ok := r.conns[id]
	if !ok {
		return false
	}
	rooms[roomID] = struct{}{}
	return true
}

func (r *Registry) RemoveRoom(id core.ConnectionID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rooms, ok := r.conns[id]; ok {
		delete(rooms, roomID)
	}
}

// Rooms returns the rooms the connection has joined.
func (r *Registry) Rooms(id core.ConnectionID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.conns[id])
}

func (r *Registry) Connected(id core.ConnectionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package rooms

import (
	"sort"
	"sync"

	"livecodeshare-server/core"
)

// Room is one collaboration namespace. All methods other than Flush expect
// the caller to hold the room lock, which the Store callbacks do.
type Room struct {
	ID string

	mu      sync.Mutex
	members map[core.ConnectionID]struct{}
	state   core.RoomState
	pending *pendingCleanup
	removed bool

	outbox   []Outbound
	flushing bool
}

func newRoom(id, language string) *Room {
	return &Room{
		ID:      id,
		members: make(map[core.ConnectionID]struct{}),
		state:   core.RoomState{Language: language},
	}
}

// AddMember reports whether id was newly added.
func (r *Room) AddMember(id core.ConnectionID) bool {
	if _, ok := r.members[id]; ok {
		return false
	}
	r.members[id] = struct{}{}
	return true
}

// RemoveMember reports whether id was a member.
func (r *Room) RemoveMember(id core.ConnectionID) bool {
	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	return true
}

func (r *Room) HasMember(id core.ConnectionID) bool {
	_, ok := r.members[id]
	return ok
}

func (r *Room) MemberCount() int { return len(r.members) }

// Members returns the member ids in a stable order.
func (r *Room) Members() []core.ConnectionID {
	out := make([]core.ConnectionID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Room) State() core.RoomState { return r.state }

func (r *Room) SetCode(code string) { r.state.Code = code }

func (r *Room) SetLanguage(language string) { r.state.Language = language }

// CleanupPending reports whether a deletion is scheduled for the room.
func (r *Room) CleanupPending() bool { return r.pending != nil }

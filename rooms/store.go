package rooms

import (
	"sort"
	"sync"
	"time"

	"livecodeshare-server/core"

	"github.com/sirupsen/logrus"
)

type (
	// Store owns every live room. The table lock guards only the map; each
	// room serializes its own mutations. Locks are always taken table first,
	// then room.
	Store struct {
		mu       sync.RWMutex
		rooms    map[string]*Room
		language string

		cleanup  *Scheduler
		onCreate func(roomID string)
		onRemove func(roomID string)
	}

	Option func(*Store)
)

// WithGracePeriod sets how long an empty room is kept.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.cleanup.delay = d
		}
	}
}

// WithClock replaces the timer source.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.cleanup.clock = c
	}
}

// WithDefaultLanguage sets the language of newly created rooms.
func WithDefaultLanguage(language string) Option {
	return func(s *Store) {
		if language != "" {
			s.language = language
		}
	}
}

// WithCreateHook is called after a room is created, outside any lock.
func WithCreateHook(fn func(roomID string)) Option {
	return func(s *Store) {
		s.onCreate = fn
	}
}

// WithRemoveHook is called after a room is reaped, outside any lock.
func WithRemoveHook(fn func(roomID string)) Option {
	return func(s *Store) {
		s.onRemove = fn
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		rooms:    make(map[string]*Room),
		language: core.DefaultLanguage,
	}
	s.cleanup = &Scheduler{
		delay: DefaultGracePeriod,
		clock: realClock{},
		fire:  s.reap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cleanup returns the scheduler bound to this store.
func (s *Store) Cleanup() *Scheduler { return s.cleanup }

// GetOrCreate runs fn with the room locked, creating the room if needed. Any
// pending cleanup is cancelled before fn runs.
func (s *Store) GetOrCreate(roomID string, fn func(*Room)) {
	r, created := s.acquire(roomID, true)
	s.cleanup.Cancel(r)
	fn(r)
	r.mu.Unlock()

	if created {
		logrus.WithField("room_id", roomID).Info("Room created")
		if s.onCreate != nil {
			s.onCreate(roomID)
		}
	}
}

// Get runs fn with the room locked. It reports false, without calling fn,
// when the room does not exist.
func (s *Store) Get(roomID string, fn func(*Room)) bool {
	r, _ := s.acquire(roomID, false)
	if r == nil {
		return false
	}
	defer r.mu.Unlock()
	fn(r)
	return true
}

// acquire returns the room with its lock held. A room reaped between the
// table lookup and the lock is skipped and looked up again.
func (s *Store) acquire(roomID string, create bool) (*Room, bool) {
	for {
		r, created := s.lookup(roomID, create)
		if r == nil {
			return nil, false
		}
		r.mu.Lock()
		if !r.removed {
			return r, created
		}
		r.mu.Unlock()
	}
}

func (s *Store) lookup(roomID string, create bool) (*Room, bool) {
	s.mu.RLock()
	r, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if ok || !create {
		return r, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok = s.rooms[roomID]; ok {
		return r, false
	}
	r = newRoom(roomID, s.language)
	s.rooms[roomID] = r
	return r, true
}

// Remove deletes the room if it exists and has no members.
func (s *Store) Remove(roomID string) bool {
	return s.remove(roomID, func(r *Room) bool { return true })
}

// reap is the timer callback. The token check drops timers that were
// cancelled after they had already started firing.
func (s *Store) reap(roomID string, token *pendingCleanup) {
	if s.remove(roomID, func(r *Room) bool { return r.pending == token }) {
		logrus.WithField("room_id", roomID).Info("Room cleaned up (inactive)")
	}
}

func (s *Store) remove(roomID string, allow func(*Room) bool) bool {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return false
	}

	r.mu.Lock()
	removed := len(r.members) == 0 && allow(r)
	if removed {
		if r.pending != nil {
			r.pending.timer.Stop()
			r.pending = nil
		}
		r.removed = true
		delete(s.rooms, roomID)
	}
	r.mu.Unlock()
	s.mu.Unlock()

	if removed && s.onRemove != nil {
		s.onRemove(roomID)
	}
	return removed
}

// SetDocument overwrites the room's text. No-op when the room is absent.
func (s *Store) SetDocument(roomID, text string) bool {
	return s.Get(roomID, func(r *Room) { r.SetCode(text) })
}

// SetLanguage overwrites the room's language. No-op when the room is absent.
func (s *Store) SetLanguage(roomID, language string) bool {
	return s.Get(roomID, func(r *Room) { r.SetLanguage(language) })
}

// Count returns the number of rooms in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// List returns a snapshot of every room with its member count.
func (s *Store) List() []core.RoomInfo {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.removed {
			out = append(out, core.RoomInfo{ID: r.ID, Users: len(r.members)})
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"livecodeshare-server/core"
)

type roomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]int64
	now   func() time.Time
}

func NewRoomRegistry() core.RoomRegistry {
	return &roomRegistry{
		rooms: make(map[string]int64),
		now:   time.Now,
	}
}

func (s *roomRegistry) TouchRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	s.rooms[roomID] = s.now().UnixMilli()
	s.mu.Unlock()

	return nil
}

func (s *roomRegistry) ListRooms(ctx context.Context) ([]core.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]core.Room, 0, len(s.rooms))
	for id, last := range s.rooms {
		rooms = append(rooms, core.Room{ID: id, LastActive: last})
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActive == rooms[j].LastActive {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].LastActive > rooms[j].LastActive
	})

	return rooms, nil
}

func (s *roomRegistry) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomID)
	return nil
}

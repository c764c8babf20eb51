package core

import (
	"context"
)

// DefaultLanguage is the language tag a freshly created room starts with.
const DefaultLanguage = "javascript"

type (
	// ConnectionID identifies one client transport for its lifetime.
	ConnectionID string

	// RoomState is the authoritative shared state of a room. It is also the
	// payload of the room-state event sent to a joiner.
	RoomState struct {
		Code     string `json:"code"`
		Language string `json:"language"`
	}

	// RoomInfo is a point-in-time view of a live room.
	RoomInfo struct {
		ID    string `json:"id"`
		Users int    `json:"users"`
	}

	// Emitter delivers a named event to a single connection. It is never
	// called with a room lock held and may re-enter the engine, but it should
	// not block on network I/O; delivery is best effort.
	Emitter interface {
		Emit(to ConnectionID, event string, payload any)
	}

	Room struct {
		ID         string
		LastActive int64
	}

	// RoomRegistry records room activity (id and last-active time only).
	RoomRegistry interface {
		ListRooms(ctx context.Context) ([]Room, error)
		TouchRoom(ctx context.Context, roomID string) error
		DeleteRoom(ctx context.Context, roomID string) error
	}
)

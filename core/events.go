package core

// Client to server events.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventCodeChange     = "code-change"
	EventLanguageChange = "language-change"
)

// Server to client events.
const (
	EventRoomState      = "room-state"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventUserCount      = "user-count"
	EventCodeUpdate     = "code-update"
	EventLanguageUpdate = "language-update"
)

type (
	// UserJoined is the payload of the user-joined event.
	UserJoined struct {
		UserID ConnectionID `json:"userId"`
	}

	// CodeChange is the payload of the code-change event.
	CodeChange struct {
		RoomID string `json:"roomId" mapstructure:"roomId"`
		Code   string `json:"code" mapstructure:"code"`
	}

	// LanguageChange is the payload of the language-change event.
	LanguageChange struct {
		RoomID   string `json:"roomId" mapstructure:"roomId"`
		Language string `json:"language" mapstructure:"language"`
	}
)

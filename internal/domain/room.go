package domain

import (
	"errors"
	"time"
)

// NewRoomSentinel is the handshake value asking for a fresh room.
const NewRoomSentinel = "new"

var ErrInvalidRoomIntent = errors.New("invalid room intent")

type RoomID string

type Room struct {
	ID        RoomID
	Host      ConnID
	CreatedAt time.Time
}

// RoomIntent is what a connection asked for at handshake time:
// either FreshRoom or JoinRoom.
type RoomIntent interface {
	isRoomIntent()
}

// FreshRoom asks for a newly generated room with the caller as host.
type FreshRoom struct{}

// JoinRoom asks to join an existing room as guest.
type JoinRoom struct {
	ID RoomID
}

func (FreshRoom) isRoomIntent() {}
func (JoinRoom) isRoomIntent()  {}

// ParseRoomIntent maps the raw handshake value onto an intent.
// The sentinel never reaches the registry as an id.
func ParseRoomIntent(raw string) (RoomIntent, error) {
	switch raw {
	case "":
		return nil, ErrInvalidRoomIntent
	case NewRoomSentinel:
		return FreshRoom{}, nil
	default:
		return JoinRoom{ID: RoomID(raw)}, nil
	}
}

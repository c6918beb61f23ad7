package core

import (
	"context"

	"github.com/dkeye/WatchParty/internal/domain"
)

// IdentityVerifier resolves an account token to a user.
// ok is false on any failure; callers treat that as unauthenticated.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (user *domain.User, ok bool)
}

// Welcome runs while a member is admitted, before any other member can see
// it. Anything it queues reaches the new member ahead of room traffic.
type Welcome func(room RoomService)

// RoomManager is the single owner of room membership.
type RoomManager interface {
	GenerateRoomID() (domain.RoomID, error)
	Exists(id domain.RoomID) bool
	Members(id domain.RoomID) []SessionID
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo

	// CreateRoom registers a new room with host as its only member.
	// welcome may be nil.
	CreateRoom(host MemberSession, welcome Welcome) (RoomService, error)
	// JoinRoom adds ms to an existing room. welcome may be nil.
	JoinRoom(id domain.RoomID, ms MemberSession, welcome Welcome) (RoomService, error)
	// Leave removes sid from the room and drops the room once empty.
	Leave(id domain.RoomID, sid SessionID) (RoomService, bool)
	// DestroyRoom unregisters the room and returns the sessions still in it.
	DestroyRoom(id domain.RoomID) []MemberSession
}

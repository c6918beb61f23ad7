package core

import "github.com/dkeye/WatchParty/internal/domain"

// SessionID is the transport connection id.
type SessionID = domain.ConnID

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	ID() SessionID
	Meta() *domain.Member
	Signal() SignalConnection
}

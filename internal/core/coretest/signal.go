// Package coretest provides in-memory doubles for core interfaces.
package coretest

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/dkeye/WatchParty/internal/protocol"
)

var (
	ErrClosed = errors.New("signal closed")
	ErrFull   = errors.New("signal full")
)

// Signal records frames instead of writing them anywhere.
type Signal struct {
	mu         sync.Mutex
	frames     []core.Frame
	closed     bool
	full       bool
	closeAfter time.Duration
}

func (s *Signal) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.full {
		return ErrFull
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *Signal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Signal) CloseAfter(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeAfter = d
}

// SetFull makes TrySend fail as if the send buffer were full.
func (s *Signal) SetFull(full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.full = full
}

func (s *Signal) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ScheduledClose returns the delay passed to CloseAfter, zero if none.
func (s *Signal) ScheduledClose() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeAfter
}

// Messages decodes every recorded frame. Undecodable frames are skipped.
func (s *Signal) Messages() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Message, 0, len(s.frames))
	for _, f := range s.frames {
		m, err := protocol.Decode(f)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Reset drops recorded frames.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

// NewSession builds a member session backed by a fresh Signal.
func NewSession(uid, name string, sid core.SessionID) (core.MemberSession, *Signal) {
	sig := &Signal{}
	user := &domain.User{ID: domain.UserID(uid), Username: name, Avatar: "https://avatars/" + uid}
	return core.NewMemberSession(domain.NewMember(user, sid), sig), sig
}

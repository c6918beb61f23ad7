package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/dkeye/WatchParty/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Handshake is what a connection carries before admission.
type Handshake struct {
	SID    core.SessionID
	Room   string
	Token  string
	Signal core.SignalConnection
}

// AdmissionError is a rejected handshake. Type and Message are what the
// client sees in conn-error.
type AdmissionError struct {
	Type    protocol.ErrorType
	Message string
	Err     error
}

func (e *AdmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AdmissionError) Unwrap() error { return e.Err }

func rejection(t protocol.ErrorType, msg string, err error) *AdmissionError {
	return &AdmissionError{Type: t, Message: msg, Err: err}
}

// Admit runs the admission sequence for one connection. On success the
// connection has joined its room and received ready. On failure it has been
// sent conn-error and scheduled for close; the returned error is an
// *AdmissionError.
func (o *Orchestrator) Admit(ctx context.Context, hs Handshake) (*Ticket, error) {
	t, aerr := o.admit(ctx, hs)
	if aerr != nil {
		log.Info().Str("module", "orch").Str("sid", string(hs.SID)).Str("type", string(aerr.Type)).Err(aerr.Err).Msg("connection rejected")
		send(hs.Signal, protocol.NameConnError, protocol.ConnError{Type: aerr.Type, Message: aerr.Message})
		hs.Signal.CloseAfter(o.rejectDelay())
		return nil, aerr
	}
	return t, nil
}

func (o *Orchestrator) admit(ctx context.Context, hs Handshake) (*Ticket, *AdmissionError) {
	intent, err := domain.ParseRoomIntent(hs.Room)
	if err != nil {
		return nil, rejection(protocol.ErrInvalidRoom, "missing room", err)
	}
	if hs.Token == "" {
		return nil, rejection(protocol.ErrInvalidAuth, "missing token", nil)
	}
	user, ok := o.Verifier.Verify(ctx, hs.Token)
	if !ok {
		return nil, rejection(protocol.ErrInvalidAuth, "invalid token", nil)
	}

	sess := core.NewMemberSession(domain.NewMember(user, hs.SID), hs.Signal)
	t := &Ticket{Session: sess}

	// ready is queued inside the registry step so it precedes any room traffic.
	welcome := func(room core.RoomService) {
		t.Room = room.Room().ID
		send(hs.Signal, protocol.NameReady, protocol.Ready{Room: t.Room, Host: t.Host})
	}

	switch in := intent.(type) {
	case domain.FreshRoom:
		t.Host = true
		if _, err := o.Rooms.CreateRoom(sess, welcome); err != nil {
			return nil, rejection(protocol.ErrInternal, "could not create room", err)
		}
	case domain.JoinRoom:
		if _, err := o.Rooms.JoinRoom(in.ID, sess, welcome); err != nil {
			if errors.Is(err, app.ErrRoomNotFound) {
				return nil, rejection(protocol.ErrInvalidRoom, "room not found", err)
			}
			return nil, rejection(protocol.ErrInternal, "could not join room", err)
		}
	}

	log.Info().Str("module", "orch").Str("sid", string(hs.SID)).Str("user", string(user.ID)).Str("room", string(t.Room)).Bool("host", t.Host).Msg("connection admitted")

	if !t.Host {
		frame, err := protocol.Encode(protocol.NameUserJoin, t.Descriptor())
		if err == nil {
			o.broadcast(t, frame)
		}
	}
	return t, nil
}

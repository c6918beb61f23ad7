// Package orch coordinates sync rooms: admission of new connections,
// relaying of member frames and teardown on disconnect.
package orch

import (
	"time"

	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/dkeye/WatchParty/internal/protocol"
	"github.com/rs/zerolog/log"
)

// DefaultRejectDelay is how long a rejected connection stays open so the
// conn-error frame can be delivered.
const DefaultRejectDelay = time.Second

type Orchestrator struct {
	Rooms       core.RoomManager
	Verifier    core.IdentityVerifier
	Policy      app.Policy
	RejectDelay time.Duration
}

// Ticket is an admitted connection: the verified member, its room and
// whether it hosts that room. It does not change after admission.
type Ticket struct {
	Session core.MemberSession
	Room    domain.RoomID
	Host    bool
}

func (t *Ticket) SID() core.SessionID { return t.Session.ID() }

func (t *Ticket) Descriptor() domain.MemberDescriptor { return t.Session.Meta().Descriptor() }

func (o *Orchestrator) rejectDelay() time.Duration {
	if o.RejectDelay > 0 {
		return o.RejectDelay
	}
	return DefaultRejectDelay
}

// send encodes and queues one frame for a single connection.
func send(sig core.SignalConnection, name string, args ...any) {
	frame, err := protocol.Encode(name, args...)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("name", name).Msg("encode frame")
		return
	}
	if err := sig.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("name", name).Msg("send frame")
	}
}

// broadcast fans frame out to everyone in the ticket's room but the sender
// and applies the backpressure policy to members that could not take it.
func (o *Orchestrator) broadcast(t *Ticket, frame core.Frame) {
	room, ok := o.Rooms.GetRoom(t.Room)
	if !ok {
		return
	}
	res := room.Broadcast(t.SID(), frame)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("room", string(t.Room)).Str("sid", string(slow.ID())).Msg("kicking slow member")
			slow.Signal().Close()
		case app.DropFrame, app.NoAction:
		}
	}
}

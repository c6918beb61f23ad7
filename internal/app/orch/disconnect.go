package orch

import (
	"github.com/dkeye/WatchParty/internal/protocol"
	"github.com/rs/zerolog/log"
)

// OnDisconnect tears down after an admitted connection closed.
// A host takes its room with it; a guest just leaves.
func (o *Orchestrator) OnDisconnect(t *Ticket) {
	if t.Host {
		o.endRoom(t)
		return
	}
	if _, left := o.Rooms.Leave(t.Room, t.SID()); !left {
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(t.SID())).Str("room", string(t.Room)).Msg("guest left")
	frame, err := protocol.Encode(protocol.NameUserLeave, t.Descriptor())
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode leave")
		return
	}
	o.broadcast(t, frame)
}

func (o *Orchestrator) endRoom(t *Ticket) {
	remaining := o.Rooms.DestroyRoom(t.Room)
	log.Info().Str("module", "orch").Str("sid", string(t.SID())).Str("room", string(t.Room)).Int("members", len(remaining)).Msg("host left, ending room")

	frame, err := protocol.Encode(protocol.NameConnError, protocol.ConnError{
		Type:    protocol.ErrHostDisconnect,
		Message: "host disconnected",
	})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode host_disconnect")
		return
	}
	for _, ms := range remaining {
		if ms.ID() == t.SID() {
			continue
		}
		_ = ms.Signal().TrySend(frame)
		ms.Signal().Close()
	}
}

package orch

import (
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/protocol"
	"github.com/rs/zerolog/log"
)

// OnMessage relays one inbound frame from an admitted connection.
//
//	SYNC_x  any member   -> HOST_SYNC_x, args unchanged
//	RES_x   host only    -> RES_x, sender descriptor prepended
//	EVNT_x  any member   -> EVNT_x, sender descriptor prepended
//
// Anything else, and RES_x from a guest, is dropped without reply.
func (o *Orchestrator) OnMessage(t *Ticket, data core.Frame) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(t.SID())).Msg("undecodable frame")
		return
	}

	var (
		name = msg.Name
		args = msg.Args
	)
	switch protocol.Classify(msg.Name) {
	case protocol.KindSync:
		name = protocol.HostName(msg.Name)
	case protocol.KindRes:
		if !t.Host {
			log.Debug().Str("module", "orch").Str("sid", string(t.SID())).Str("name", msg.Name).Msg("guest RES dropped")
			return
		}
		fallthrough
	case protocol.KindEvnt:
		args, err = protocol.Prepend(t.Descriptor(), msg.Args)
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("prepend descriptor")
			return
		}
	case protocol.KindUnknown:
		log.Debug().Str("module", "orch").Str("sid", string(t.SID())).Str("name", msg.Name).Msg("unknown frame ignored")
		return
	}

	frame, err := protocol.EncodeRaw(name, args)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("name", name).Msg("encode relay")
		return
	}
	o.broadcast(t, frame)
}

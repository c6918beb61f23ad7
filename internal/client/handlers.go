package client

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/dkeye/WatchParty/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// dispatch runs on the read loop only, so local state has a single writer
// per connection.
func (a *Agent) dispatch(conn *websocket.Conn, msg protocol.Message) {
	if !a.current(conn) {
		return
	}
	switch msg.Name {
	case protocol.NameReady:
		a.onReady(conn, msg)
	case protocol.NameConnError:
		a.onConnError(msg)
	case NameHostSyncGetPlayback:
		a.onPlaybackRequest(conn)
	case NameResSyncGetPlayback, NameResPlaybackUpdate:
		from, rest := senderArgs(msg)
		var ps PlaybackState
		if len(rest) == 0 || json.Unmarshal(rest[0], &ps) != nil {
			log.Debug().Str("module", "client").Str("name", msg.Name).Msg("playback frame without state")
			return
		}
		a.emit(PlaybackResync{From: from, State: ps})
		a.emit(Toast{Kind: ToastPlayback, Member: from, Text: fmt.Sprintf("Synced with %s", from.Name)})
	case NamePlaybackEnd:
		from, _ := senderArgs(msg)
		a.emit(PlaybackEnd{From: from})
		a.emit(Toast{Kind: ToastPlayback, Member: from, Text: fmt.Sprintf("%s ended playback", from.Name)})
	case NamePlaybackPause:
		from, _ := senderArgs(msg)
		a.emit(PlaybackPause{From: from})
		a.emit(Toast{Kind: ToastPlayback, Member: from, Text: fmt.Sprintf("%s paused", from.Name)})
	case NamePlaybackResume:
		from, _ := senderArgs(msg)
		a.emit(PlaybackResume{From: from})
		a.emit(Toast{Kind: ToastPlayback, Member: from, Text: fmt.Sprintf("%s resumed", from.Name)})
	case NamePlaybackSeek:
		from, rest := senderArgs(msg)
		var ms int64
		if len(rest) == 0 || json.Unmarshal(rest[0], &ms) != nil {
			log.Debug().Str("module", "client").Msg("seek without time")
			return
		}
		a.emit(PlaybackSeek{From: from, Time: ms})
		a.emit(Toast{Kind: ToastPlayback, Member: from, Text: fmt.Sprintf("%s seeked", from.Name)})
	case protocol.NameUserJoin:
		from, _ := senderArgs(msg)
		a.emit(Toast{Kind: ToastJoin, Member: from, Text: fmt.Sprintf("%s joined", from.Name)})
	case protocol.NameUserLeave:
		from, _ := senderArgs(msg)
		a.emit(Toast{Kind: ToastLeave, Member: from, Text: fmt.Sprintf("%s left", from.Name)})
	default:
		log.Debug().Str("module", "client").Str("name", msg.Name).Msg("unhandled frame")
	}
}

func (a *Agent) onReady(conn *websocket.Conn, msg protocol.Message) {
	var ready protocol.Ready
	if len(msg.Args) == 0 || json.Unmarshal(msg.Args[0], &ready) != nil {
		log.Warn().Str("module", "client").Msg("malformed ready")
		return
	}
	a.mu.Lock()
	if a.state != StateConnecting {
		a.mu.Unlock()
		return
	}
	a.state = StateAdmitted
	a.room = ready.Room
	a.host = ready.Host
	at := a.pending
	a.mu.Unlock()

	log.Info().Str("module", "client").Str("room", string(ready.Room)).Bool("host", ready.Host).Msg("admitted")
	if !ready.Host {
		if err := a.write(conn, NameSyncGetPlayback); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("request playback")
		}
	}
	if at != nil {
		at.finish(nil)
	}
}

func (a *Agent) onConnError(msg protocol.Message) {
	var ce protocol.ConnError
	if len(msg.Args) > 0 {
		_ = json.Unmarshal(msg.Args[0], &ce)
	}
	a.mu.Lock()
	var at *attempt
	if a.state == StateConnecting {
		at = a.pending
	} else {
		a.closeWhy = string(ce.Type)
	}
	a.mu.Unlock()

	log.Info().Str("module", "client").Str("type", string(ce.Type)).Str("message", ce.Message).Msg("conn-error")
	if at != nil {
		at.finish(&SocketError{Type: ce.Type, Message: ce.Message})
	}
}

// onPlaybackRequest answers a guest's SYNC_GET_PLAYBACK with the cached state.
func (a *Agent) onPlaybackRequest(conn *websocket.Conn) {
	if !a.IsHost() {
		return
	}
	ps, ok := a.cache.get()
	if !ok {
		return
	}
	if err := a.write(conn, NameResSyncGetPlayback, ps); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("answer playback request")
	}
}

// senderArgs splits a relayed frame into its sender descriptor and the rest.
func senderArgs(msg protocol.Message) (domain.MemberDescriptor, []json.RawMessage) {
	var from domain.MemberDescriptor
	if len(msg.Args) == 0 {
		return from, nil
	}
	_ = json.Unmarshal(msg.Args[0], &from)
	return from, msg.Args[1:]
}

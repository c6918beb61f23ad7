package client

import (
	"github.com/dkeye/WatchParty/internal/domain"
)

// Event is the closed set of things the agent tells the playback UI.
// Use Dispatch with a Handler to get every case handled.
type Event interface {
	isEvent()
}

// PlaybackResync carries the host's authoritative playback state.
type PlaybackResync struct {
	From  domain.MemberDescriptor
	State PlaybackState
}

type PlaybackEnd struct {
	From domain.MemberDescriptor
}

type PlaybackPause struct {
	From domain.MemberDescriptor
}

type PlaybackResume struct {
	From domain.MemberDescriptor
}

// PlaybackSeek moves playback to Time milliseconds.
type PlaybackSeek struct {
	From domain.MemberDescriptor
	Time int64
}

type ToastKind int

const (
	ToastJoin ToastKind = iota
	ToastLeave
	ToastPlayback
)

// Toast is a short on-screen notification.
type Toast struct {
	Kind   ToastKind
	Member domain.MemberDescriptor
	Text   string
}

const (
	ReasonClient    = "client"
	ReasonTransport = "transport"
)

// Disconnected is emitted once per admitted connection when it ends.
// Reason is ReasonClient, ReasonTransport or a server conn-error type.
type Disconnected struct {
	Reason string
}

func (PlaybackResync) isEvent() {}
func (PlaybackEnd) isEvent()    {}
func (PlaybackPause) isEvent()  {}
func (PlaybackResume) isEvent() {}
func (PlaybackSeek) isEvent()   {}
func (Toast) isEvent()          {}
func (Disconnected) isEvent()   {}

// Handler has one method per event; implementing it is the exhaustiveness check.
type Handler interface {
	OnPlaybackResync(PlaybackResync)
	OnPlaybackEnd(PlaybackEnd)
	OnPlaybackPause(PlaybackPause)
	OnPlaybackResume(PlaybackResume)
	OnPlaybackSeek(PlaybackSeek)
	OnToast(Toast)
	OnDisconnected(Disconnected)
}

func Dispatch(ev Event, h Handler) {
	switch e := ev.(type) {
	case PlaybackResync:
		h.OnPlaybackResync(e)
	case PlaybackEnd:
		h.OnPlaybackEnd(e)
	case PlaybackPause:
		h.OnPlaybackPause(e)
	case PlaybackResume:
		h.OnPlaybackResume(e)
	case PlaybackSeek:
		h.OnPlaybackSeek(e)
	case Toast:
		h.OnToast(e)
	case Disconnected:
		h.OnDisconnected(e)
	}
}

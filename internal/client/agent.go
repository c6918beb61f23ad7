// Package client is the consumer side of the sync socket. An Agent owns one
// connection at a time, keeps the room id and host flag, answers or asks for
// playback state, and turns relayed frames into Events for the player UI.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/dkeye/WatchParty/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultEventBuffer    = 64
	writeWait             = 5 * time.Second
)

const (
	NameSyncGetPlayback     = "SYNC_GET_PLAYBACK"
	NameHostSyncGetPlayback = "HOST_SYNC_GET_PLAYBACK"
	NameResSyncGetPlayback  = "RES_SYNC_GET_PLAYBACK"
	NameResPlaybackUpdate   = "RES_PLAYBACK_UPDATE"
	NamePlaybackEnd         = "EVNT_PLAYBACK_END"
	NamePlaybackPause       = "EVNT_PLAYBACK_PAUSE"
	NamePlaybackResume      = "EVNT_PLAYBACK_RESUME"
	NamePlaybackSeek        = "EVNT_PLAYBACK_SEEK"
)

// ErrTransport is the SocketError type for dial and read failures.
const ErrTransport protocol.ErrorType = "transport_error"

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	// ErrConnectAborted is returned by Connect when Disconnect ends the attempt.
	ErrConnectAborted = errors.New("connect aborted")
)

// SocketError is why Connect did not end in admission.
type SocketError struct {
	Type    protocol.ErrorType
	Message string
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("socket error %s: %s", e.Type, e.Message)
}

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAdmitted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAdmitted:
		return "admitted"
	case StateRejected:
		return "rejected"
	default:
		return "disconnected"
	}
}

type Config struct {
	// URL of the sync socket, e.g. ws://host:8080/api/ws/sync.
	URL            string
	Token          string
	ConnectTimeout time.Duration
	EventBuffer    int
	Dialer         *websocket.Dialer
}

// attempt is one in-flight Connect.
type attempt struct {
	result chan error
	abort  context.CancelCauseFunc
}

// finish reports the admission outcome; only the first one counts.
func (at *attempt) finish(err error) {
	select {
	case at.result <- err:
	default:
	}
}

type Agent struct {
	cfg    Config
	events chan Event
	cache  playbackCache

	mu       sync.Mutex
	state    State
	room     domain.RoomID
	host     bool
	conn     *websocket.Conn
	closeWhy string
	pending  *attempt

	writeMu sync.Mutex
	emitMu  sync.Mutex
}

func NewAgent(cfg Config) *Agent {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Agent{
		cfg:    cfg,
		events: make(chan Event, cfg.EventBuffer),
	}
}

func (a *Agent) Events() <-chan Event { return a.events }

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) Room() domain.RoomID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.room
}

func (a *Agent) IsHost() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.host
}

func (a *Agent) dialURL(roomID string) (string, error) {
	u, err := url.Parse(a.cfg.URL)
	if err != nil {
		return "", err
	}
	if roomID == "" {
		roomID = domain.NewRoomSentinel
	}
	q := u.Query()
	q.Set("room", roomID)
	if a.cfg.Token != "" {
		q.Set("token", a.cfg.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect opens the socket for roomID ("" creates a new room) and waits for
// ready, conn-error or the connect timeout. A nil error means admitted.
// ErrAlreadyConnected and ErrConnectAborted are returned as is; anything
// else is a *SocketError.
func (a *Agent) Connect(ctx context.Context, roomID string) error {
	ctx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	a.mu.Lock()
	if a.state == StateConnecting || a.state == StateAdmitted {
		a.mu.Unlock()
		return ErrAlreadyConnected
	}
	a.state = StateConnecting
	a.room, a.host, a.closeWhy = "", false, ""
	at := &attempt{result: make(chan error, 1), abort: abort}
	a.pending = at
	a.mu.Unlock()

	target, err := a.dialURL(roomID)
	if err != nil {
		return a.fail(at, nil, &SocketError{Type: ErrTransport, Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	dialer, stop := a.dialer(ctx)
	conn, _, err := dialer.DialContext(ctx, target, nil)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return a.fail(at, nil, connectCause(ctx))
		}
		return a.fail(at, nil, &SocketError{Type: ErrTransport, Message: err.Error()})
	}

	a.mu.Lock()
	if a.pending != at {
		// Disconnect ran while dialing.
		a.mu.Unlock()
		_ = conn.Close()
		return ErrConnectAborted
	}
	a.conn = conn
	a.mu.Unlock()
	go a.readLoop(conn)

	select {
	case err := <-at.result:
		if err != nil {
			return a.fail(at, conn, err)
		}
		a.mu.Lock()
		if a.pending == at {
			a.pending = nil
		}
		a.mu.Unlock()
		return nil
	case <-ctx.Done():
		return a.fail(at, conn, connectCause(ctx))
	}
}

// dialer returns a copy of the configured dialer whose socket is closed when
// ctx ends, so cancellation also interrupts the handshake. stop must be
// called once DialContext returns.
func (a *Agent) dialer(ctx context.Context) (*websocket.Dialer, func()) {
	d := *a.cfg.Dialer
	netDial := d.NetDialContext
	if netDial == nil && d.NetDial != nil {
		plain := d.NetDial
		netDial = func(_ context.Context, network, addr string) (net.Conn, error) {
			return plain(network, addr)
		}
	}
	if netDial == nil {
		netDial = (&net.Dialer{}).DialContext
	}
	var release func() bool
	d.NetDialContext = func(dctx context.Context, network, addr string) (net.Conn, error) {
		nc, err := netDial(dctx, network, addr)
		if err != nil {
			return nil, err
		}
		release = context.AfterFunc(ctx, func() { _ = nc.Close() })
		return nc, nil
	}
	return &d, func() {
		if release != nil {
			release()
		}
	}
}

// connectCause maps a finished connect context to the error Connect returns.
func connectCause(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), ErrConnectAborted) {
		return ErrConnectAborted
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &SocketError{Type: protocol.ErrTimeout, Message: "connect timed out"}
	}
	return &SocketError{Type: ErrTransport, Message: ctx.Err().Error()}
}

// fail ends a connect attempt. It only moves to StateRejected while at is
// still the pending attempt; an aborted attempt leaves Disconnect's state.
func (a *Agent) fail(at *attempt, conn *websocket.Conn, err error) error {
	a.mu.Lock()
	if a.pending == at {
		a.pending = nil
		a.state = StateRejected
	}
	if conn != nil && a.conn == conn {
		a.conn = nil
	}
	a.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	log.Info().Str("module", "client").Err(err).Msg("connect failed")
	return err
}

// Disconnect closes the socket and resets to StateDisconnected. A Connect
// in progress returns ErrConnectAborted.
func (a *Agent) Disconnect() {
	a.mu.Lock()
	conn := a.conn
	at := a.pending
	wasAdmitted := a.state == StateAdmitted
	a.conn = nil
	a.pending = nil
	a.state = StateDisconnected
	a.room, a.host = "", false
	a.mu.Unlock()

	if at != nil {
		at.abort(ErrConnectAborted)
	}
	a.cache.clear()
	if conn == nil {
		return
	}
	a.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	a.writeMu.Unlock()
	_ = conn.Close()
	if wasAdmitted {
		a.emit(Disconnected{Reason: ReasonClient})
	}
}

// Send writes one application frame. The agent must be admitted.
func (a *Agent) Send(name string, args ...any) error {
	a.mu.Lock()
	conn, state := a.conn, a.state
	a.mu.Unlock()
	if conn == nil || state != StateAdmitted {
		return ErrNotConnected
	}
	return a.write(conn, name, args...)
}

func (a *Agent) write(conn *websocket.Conn, name string, args ...any) error {
	frame, err := protocol.Encode(name, args...)
	if err != nil {
		return err
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// PushPlayback records ps as this client's current state. A host also
// broadcasts it; guests only keep it locally.
func (a *Agent) PushPlayback(ps PlaybackState) error {
	a.cache.set(ps)
	if !a.IsHost() {
		return nil
	}
	return a.Send(NameResPlaybackUpdate, ps)
}

func (a *Agent) Pause() error  { return a.Send(NamePlaybackPause) }
func (a *Agent) Resume() error { return a.Send(NamePlaybackResume) }
func (a *Agent) End() error    { return a.Send(NamePlaybackEnd) }

func (a *Agent) Seek(ms int64) error { return a.Send(NamePlaybackSeek, ms) }

// emit never blocks the read loop; a full bus drops the event. Disconnected
// is terminal for the UI, so it evicts the oldest queued event instead.
func (a *Agent) emit(ev Event) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	select {
	case a.events <- ev:
		return
	default:
	}
	if _, terminal := ev.(Disconnected); !terminal {
		log.Warn().Str("module", "client").Type("event", ev).Msg("event bus full, dropping")
		return
	}
	select {
	case old := <-a.events:
		log.Warn().Str("module", "client").Type("event", old).Msg("event bus full, evicting")
	default:
	}
	select {
	case a.events <- ev:
	default:
		log.Error().Str("module", "client").Msg("event bus full, disconnect lost")
	}
}

func (a *Agent) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.onClosed(conn, err)
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Debug().Err(err).Str("module", "client").Msg("undecodable frame")
			continue
		}
		a.dispatch(conn, msg)
	}
}

func (a *Agent) onClosed(conn *websocket.Conn, err error) {
	a.mu.Lock()
	if a.conn != conn {
		a.mu.Unlock()
		return
	}
	wasAdmitted := a.state == StateAdmitted
	at := a.pending
	reason := a.closeWhy
	a.conn = nil
	if wasAdmitted {
		a.state = StateDisconnected
		a.room, a.host = "", false
	}
	a.mu.Unlock()

	if at != nil {
		at.finish(&SocketError{Type: ErrTransport, Message: err.Error()})
	}
	if wasAdmitted {
		if reason == "" {
			reason = ReasonTransport
		}
		log.Info().Str("module", "client").Str("reason", reason).Msg("disconnected")
		a.emit(Disconnected{Reason: reason})
	}
}

// current reports whether conn is still the agent's connection.
func (a *Agent) current(conn *websocket.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn == conn
}

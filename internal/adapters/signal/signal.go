// Package signal serves the sync socket: one websocket per member, framed
// as protocol messages and handed to the orchestrator.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/app/orch"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// TokenKey is the gin context key the router stores the account token under.
const TokenKey = "account_token"

const (
	DefaultReadLimit  = 32768
	DefaultPingPeriod = 54 * time.Second
	DefaultSendBuffer = 64
	writeWait         = 5 * time.Second
)

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	SendBuffer   int
	RateLimit    int
	RateInterval time.Duration
}

type SyncWSController struct {
	Orch    *orch.Orchestrator
	Limiter *FrameRateLimiter
	opts    Options
}

func NewSyncWSController(o *orch.Orchestrator, opts Options) *SyncWSController {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = DefaultPingPeriod
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	return &SyncWSController{
		Orch:    o,
		Limiter: NewFrameRateLimiter(opts.RateLimit, opts.RateInterval),
		opts:    opts,
	}
}

// wsSignalConn implements core.SignalConnection over a websocket.
// Close only closes the send queue; the write pump drains it and then
// closes the socket.
type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
	timer  *time.Timer
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *wsSignalConn {
	return &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	close(c.send)
}

func (c *wsSignalConn) CloseAfter(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, c.Close)
}

func (c *wsSignalConn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSync upgrades the request and runs admission. The handshake is the
// room query parameter plus the token the router resolved.
func (ctl *SyncWSController) HandleSync(ctx context.Context, c *gin.Context) {
	room := c.Query("room")
	token := c.GetString(TokenKey)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", room).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	connCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		ctl.writePump(connCtx, sid, conn)
	}()

	ticket, err := ctl.Orch.Admit(connCtx, orch.Handshake{
		SID:    sid,
		Room:   room,
		Token:  token,
		Signal: conn,
	})
	if err != nil {
		go ctl.drainPump(connCtx, sid, conn)
		return
	}
	go ctl.readPump(connCtx, ticket, conn)
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/app/orch"
	"github.com/dkeye/WatchParty/internal/config"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/dkeye/WatchParty/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]*domain.User

func (s stubVerifier) Verify(_ context.Context, token string) (*domain.User, bool) {
	u, ok := s[token]
	return u, ok
}

var testUsers = stubVerifier{
	"tok-a": {ID: "1", Username: "alice", Avatar: "https://img/a"},
	"tok-b": {ID: "2", Username: "bob", Avatar: "https://img/b"},
}

// firstThenRandom hands out id once, then random ids.
func firstThenRandom(id domain.RoomID) app.IDSource {
	used := false
	return func() (domain.RoomID, error) {
		if !used {
			used = true
			return id, nil
		}
		return app.RandomRoomID()
	}
}

type testEnv struct {
	srv  *httptest.Server
	orch *orch.Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:       "test",
		ReadLimit:  32768,
		PingPeriod: time.Minute,
		Secret:     "test-secret",
		Sync:       config.SyncConfig{SendBuffer: 64},
		CORS:       config.CORSConfig{AllowedOrigins: []string{"https://watch.example"}},
	}
	o := &orch.Orchestrator{
		Rooms:       app.NewRegistry(app.WithIDSource(firstThenRandom("ab12cd"))),
		Verifier:    testUsers,
		Policy:      app.SimplePolicy{},
		RejectDelay: 100 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(WithCORS(cfg, SetupRouter(ctx, cfg, o)))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testEnv{srv: srv, orch: o}
}

func (e *testEnv) wsURL(room, token string) string {
	q := url.Values{}
	if room != "" {
		q.Set("room", room)
	}
	if token != "" {
		q.Set("token", token)
	}
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws/sync?" + q.Encode()
}

func (e *testEnv) dial(t *testing.T, room, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(room, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	return msg
}

func readReady(t *testing.T, conn *websocket.Conn) protocol.Ready {
	t.Helper()
	msg := readMsg(t, conn)
	require.Equal(t, protocol.NameReady, msg.Name)
	var ready protocol.Ready
	require.NoError(t, json.Unmarshal(msg.Args[0], &ready))
	return ready
}

func readConnError(t *testing.T, conn *websocket.Conn) protocol.ConnError {
	t.Helper()
	msg := readMsg(t, conn)
	require.Equal(t, protocol.NameConnError, msg.Name)
	var ce protocol.ConnError
	require.NoError(t, json.Unmarshal(msg.Args[0], &ce))
	return ce
}

func requireClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			t.Fatal("connection was not closed by the server")
		}
		return
	}
}

func send(t *testing.T, conn *websocket.Conn, name string, args ...any) {
	t.Helper()
	frame, err := protocol.Encode(name, args...)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestJoinLeaveScenario(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "new", "tok-a")
	readyA := readReady(t, a)
	assert.Equal(t, protocol.Ready{Room: "ab12cd", Host: true}, readyA)

	b := env.dial(t, "ab12cd", "tok-b")
	assert.Equal(t, protocol.Ready{Room: "ab12cd", Host: false}, readReady(t, b))

	join := readMsg(t, a)
	assert.Equal(t, protocol.NameUserJoin, join.Name)
	var joined domain.MemberDescriptor
	require.NoError(t, json.Unmarshal(join.Args[0], &joined))
	assert.Equal(t, domain.UserID("2"), joined.UID)
	assert.Equal(t, "bob", joined.Name)
	assert.NotEmpty(t, joined.ConnectionID)

	require.NoError(t, b.Close())
	leave := readMsg(t, a)
	assert.Equal(t, protocol.NameUserLeave, leave.Name)
	var left domain.MemberDescriptor
	require.NoError(t, json.Unmarshal(leave.Args[0], &left))
	assert.Equal(t, joined, left)

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool { return !env.orch.Rooms.Exists("ab12cd") }, 2*time.Second, 10*time.Millisecond)
}

func TestPlaybackRequestScenario(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "new", "tok-a")
	room := readReady(t, a).Room
	b := env.dial(t, string(room), "tok-b")
	readReady(t, b)
	readMsg(t, a) // EVNT_USER_JOIN

	send(t, b, "SYNC_GET_PLAYBACK")
	req := readMsg(t, a)
	assert.Equal(t, "HOST_SYNC_GET_PLAYBACK", req.Name)
	assert.Empty(t, req.Args)

	send(t, a, "RES_SYNC_GET_PLAYBACK", map[string]any{"key": "100", "state": "playing", "time": 5000})
	res := readMsg(t, b)
	assert.Equal(t, "RES_SYNC_GET_PLAYBACK", res.Name)
	require.Len(t, res.Args, 2)
	var from domain.MemberDescriptor
	require.NoError(t, json.Unmarshal(res.Args[0], &from))
	assert.Equal(t, domain.UserID("1"), from.UID)
	assert.Equal(t, "alice", from.Name)
	assert.Equal(t, "https://img/a", from.Avatar)
	assert.JSONEq(t, `{"key":"100","state":"playing","time":5000}`, string(res.Args[1]))
}

func TestGuestResIsDropped(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "new", "tok-a")
	room := readReady(t, a).Room
	b := env.dial(t, string(room), "tok-b")
	readReady(t, b)
	readMsg(t, a)

	send(t, b, "RES_SYNC_GET_PLAYBACK", map[string]any{"state": "paused"})
	send(t, b, "EVNT_PLAYBACK_PAUSE")

	// the first frame a sees is the EVNT, the RES never arrives
	msg := readMsg(t, a)
	assert.Equal(t, "EVNT_PLAYBACK_PAUSE", msg.Name)
}

func TestHostDisconnectClosesGuests(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "new", "tok-a")
	room := readReady(t, a).Room
	b := env.dial(t, string(room), "tok-b")
	readReady(t, b)
	readMsg(t, a)

	require.NoError(t, a.Close())

	ce := readConnError(t, b)
	assert.Equal(t, protocol.ErrHostDisconnect, ce.Type)
	requireClosed(t, b)
	assert.False(t, env.orch.Rooms.Exists(room))

	c := env.dial(t, string(room), "tok-b")
	assert.Equal(t, protocol.ErrInvalidRoom, readConnError(t, c).Type)
}

func TestRejections(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name  string
		room  string
		token string
		want  protocol.ErrorType
	}{
		{"unknown room", "ffffff", "tok-a", protocol.ErrInvalidRoom},
		{"missing room", "", "tok-a", protocol.ErrInvalidRoom},
		{"missing token", "new", "", protocol.ErrInvalidAuth},
		{"invalid token", "new", "bogus", protocol.ErrInvalidAuth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := env.dial(t, tc.room, tc.token)
			ce := readConnError(t, conn)
			assert.Equal(t, tc.want, ce.Type)
			requireClosed(t, conn)
		})
	}
	assert.Empty(t, env.orch.Rooms.List())
}

func TestSessionTokenFallback(t *testing.T) {
	env := newTestEnv(t)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Post(env.srv.URL+"/api/session", "application/json", strings.NewReader(`{"token":"tok-a"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	dialer := websocket.Dialer{Jar: jar}
	conn, _, err := dialer.Dial(env.wsURL("new", ""), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.True(t, readReady(t, conn).Host)

	resp, err = client.Post(env.srv.URL+"/api/session", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBearerHeaderToken(t *testing.T) {
	env := newTestEnv(t)
	header := http.Header{}
	header.Set("Authorization", "Bearer tok-b")
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("new", ""), header)
	require.NoError(t, err)
	defer conn.Close()
	assert.True(t, readReady(t, conn).Host)
}

func TestRoomEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/rooms/ab12cd")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	a := env.dial(t, "new", "tok-a")
	readReady(t, a)

	resp, err = http.Get(env.srv.URL + "/api/rooms/ab12cd")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		ID          string                    `json:"id"`
		MemberCount int                       `json:"member_count"`
		Members     []domain.MemberDescriptor `json:"members"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ab12cd", body.ID)
	assert.Equal(t, 1, body.MemberCount)
	require.Len(t, body.Members, 1)
	assert.Equal(t, "alice", body.Members[0].Name)

	hresp, err := http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	defer hresp.Body.Close()
	var health struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(hresp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Rooms)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/session", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://watch.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://watch.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

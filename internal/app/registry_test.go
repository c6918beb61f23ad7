package app

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/core/coretest"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns ids from a fixed list and counts calls.
func sequence(ids ...domain.RoomID) (IDSource, *int) {
	calls := 0
	return func() (domain.RoomID, error) {
		id := ids[calls%len(ids)]
		calls++
		return id, nil
	}, &calls
}

func TestRandomRoomIDFormat(t *testing.T) {
	hexID := regexp.MustCompile(`^[0-9a-f]{6}$`)
	for i := 0; i < 100; i++ {
		id, err := RandomRoomID()
		require.NoError(t, err)
		assert.Regexp(t, hexID, string(id))
		assert.NotEqual(t, domain.NewRoomSentinel, string(id))
	}
}

func TestGenerateRoomIDSkipsTaken(t *testing.T) {
	src, calls := sequence("aaaaaa", "aaaaaa", "bbbbbb")
	reg := NewRegistry(WithIDSource(src))

	host, _ := coretest.NewSession("1", "alice", "c1")
	room, err := reg.CreateRoom(host, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("aaaaaa"), room.Room().ID)

	id, err := reg.GenerateRoomID()
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("bbbbbb"), id)
	assert.Equal(t, 3, *calls)
}

func TestGenerateRoomIDStopsAtBound(t *testing.T) {
	src, calls := sequence("aaaaaa")
	reg := NewRegistry(WithIDSource(src))
	host, _ := coretest.NewSession("1", "alice", "c1")
	_, err := reg.CreateRoom(host, nil)
	require.NoError(t, err)
	*calls = 0

	_, err = reg.GenerateRoomID()
	assert.ErrorIs(t, err, ErrRoomIDExhausted)
	assert.Equal(t, MaxRoomIDAttempts, *calls)

	other, _ := coretest.NewSession("2", "bob", "c2")
	_, err = reg.CreateRoom(other, nil)
	assert.ErrorIs(t, err, ErrRoomIDExhausted)
	assert.Equal(t, 1, reg.Count())
}

func TestGenerateRoomIDNeverReturnsSentinel(t *testing.T) {
	src, _ := sequence(domain.NewRoomSentinel, "cccccc")
	reg := NewRegistry(WithIDSource(src))
	id, err := reg.GenerateRoomID()
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("cccccc"), id)
}

func TestGenerateRoomIDSourceError(t *testing.T) {
	reg := NewRegistry(WithIDSource(func() (domain.RoomID, error) {
		return "", fmt.Errorf("entropy gone")
	}))
	_, err := reg.GenerateRoomID()
	assert.Error(t, err)
}

func TestJoinAndLeave(t *testing.T) {
	reg := NewRegistry()
	host, _ := coretest.NewSession("1", "alice", "c1")
	room, err := reg.CreateRoom(host, nil)
	require.NoError(t, err)
	id := room.Room().ID
	assert.Equal(t, domain.ConnID("c1"), room.Room().Host)

	guest, _ := coretest.NewSession("2", "bob", "c2")
	_, err = reg.JoinRoom(id, guest, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.ConnID{"c1", "c2"}, reg.Members(id))

	_, err = reg.JoinRoom("ffffff", guest, nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, left := reg.Leave(id, "c2")
	assert.True(t, left)
	assert.True(t, reg.Exists(id))

	_, left = reg.Leave(id, "c2")
	assert.False(t, left)

	_, left = reg.Leave(id, "c1")
	assert.True(t, left)
	assert.False(t, reg.Exists(id))
	assert.Nil(t, reg.Members(id))
}

func TestWelcomeRunsBeforeMemberIsAdded(t *testing.T) {
	reg := NewRegistry()
	host, hostSig := coretest.NewSession("1", "alice", "c1")

	seen := -1
	room, err := reg.CreateRoom(host, func(r core.RoomService) {
		seen = r.MemberCount()
		require.NoError(t, hostSig.TrySend(core.Frame(`{"name":"ready","args":[]}`)))
	})
	require.NoError(t, err)
	assert.Equal(t, 0, seen, "host is not a member yet while welcomed")

	guest, guestSig := coretest.NewSession("2", "bob", "c2")
	_, err = reg.JoinRoom(room.Room().ID, guest, func(r core.RoomService) {
		seen = r.MemberCount()
		require.NoError(t, guestSig.TrySend(core.Frame(`{"name":"ready","args":[]}`)))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)

	// Room traffic sent after admission lands behind the welcome frame.
	room.Broadcast("c1", core.Frame(`{"name":"EVNT_X","args":[]}`))
	msgs := guestSig.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "ready", msgs[0].Name)
	assert.Equal(t, "EVNT_X", msgs[1].Name)
	assert.Equal(t, "ready", hostSig.Messages()[0].Name)

	_, err = reg.JoinRoom("ffffff", guest, func(core.RoomService) { t.Fatal("welcome on missing room") })
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDestroyRoom(t *testing.T) {
	reg := NewRegistry()
	host, _ := coretest.NewSession("1", "alice", "c1")
	room, err := reg.CreateRoom(host, nil)
	require.NoError(t, err)
	guest, _ := coretest.NewSession("2", "bob", "c2")
	_, err = reg.JoinRoom(room.Room().ID, guest, nil)
	require.NoError(t, err)

	left := reg.DestroyRoom(room.Room().ID)
	assert.Len(t, left, 2)
	assert.False(t, reg.Exists(room.Room().ID))
	assert.Nil(t, reg.DestroyRoom(room.Room().ID))
}

func TestList(t *testing.T) {
	src, _ := sequence("bbbbbb", "aaaaaa")
	reg := NewRegistry(WithIDSource(src))
	h1, _ := coretest.NewSession("1", "alice", "c1")
	h2, _ := coretest.NewSession("2", "bob", "c2")
	_, err := reg.CreateRoom(h1, nil)
	require.NoError(t, err)
	_, err = reg.CreateRoom(h2, nil)
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, domain.RoomID("aaaaaa"), list[0].ID)
	assert.Equal(t, 1, list[0].MemberCount)
}

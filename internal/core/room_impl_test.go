package core_test

import (
	"testing"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/core/coretest"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomBroadcastSkipsSender(t *testing.T) {
	room := core.NewRoomService(&domain.Room{ID: "ab12cd", Host: "c1"})
	a, sigA := coretest.NewSession("1", "alice", "c1")
	b, sigB := coretest.NewSession("2", "bob", "c2")
	c, sigC := coretest.NewSession("3", "carol", "c3")
	room.AddMember(a)
	room.AddMember(b)
	room.AddMember(c)

	res := room.Broadcast("c1", core.Frame(`{"name":"EVNT_X","args":[]}`))
	assert.Equal(t, 2, res.SendTo)
	assert.Empty(t, res.Dropped)
	assert.Empty(t, sigA.Messages())
	assert.Len(t, sigB.Messages(), 1)
	assert.Len(t, sigC.Messages(), 1)
}

func TestRoomBroadcastReportsDropped(t *testing.T) {
	room := core.NewRoomService(&domain.Room{ID: "ab12cd", Host: "c1"})
	a, _ := coretest.NewSession("1", "alice", "c1")
	b, sigB := coretest.NewSession("2", "bob", "c2")
	room.AddMember(a)
	room.AddMember(b)
	sigB.SetFull(true)

	res := room.Broadcast("c1", core.Frame(`{"name":"EVNT_X","args":[]}`))
	assert.Equal(t, 0, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, core.SessionID("c2"), res.Dropped[0].ID())
}

func TestRoomMembership(t *testing.T) {
	room := core.NewRoomService(&domain.Room{ID: "ab12cd", Host: "c1"})
	a, _ := coretest.NewSession("1", "alice", "c1")
	b, _ := coretest.NewSession("2", "bob", "c2")
	room.AddMember(a)
	room.AddMember(b)

	snap := room.MembersSnapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "alice", snap[0].Name)
	assert.Equal(t, "bob", snap[1].Name)

	removed, ok := room.RemoveMember("c1")
	require.True(t, ok)
	assert.Equal(t, core.SessionID("c1"), removed.ID())
	assert.False(t, room.Has("c1"))
	assert.Equal(t, 1, room.MemberCount())

	_, ok = room.RemoveMember("c1")
	assert.False(t, ok)
}

package app

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxRoomIDAttempts bounds room id generation; the bound is exact.
const MaxRoomIDAttempts = 10

const roomIDBytes = 3

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomIDExhausted = errors.New("room id attempts exhausted")
)

// IDSource produces candidate room ids.
type IDSource func() (domain.RoomID, error)

// RandomRoomID returns 6 lowercase hex characters. The "new" sentinel is
// alphabetic outside a-f so it can never be produced.
func RandomRoomID() (domain.RoomID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return domain.RoomID(hex.EncodeToString(u[:roomIDBytes])), nil
}

type RegistryOption func(*RoomRegistry)

// WithIDSource replaces the random id source, mostly for tests.
func WithIDSource(src IDSource) RegistryOption {
	return func(r *RoomRegistry) { r.newID = src }
}

// RoomRegistry is the in-memory map of rooms. It is created once per
// process and handed to whoever needs it.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
	newID IDSource
	now   func() time.Time
}

var _ core.RoomManager = (*RoomRegistry)(nil)

func NewRegistry(opts ...RegistryOption) *RoomRegistry {
	r := &RoomRegistry{
		rooms: make(map[domain.RoomID]core.RoomService),
		newID: RandomRoomID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GenerateRoomID returns an id not currently registered.
func (r *RoomRegistry) GenerateRoomID() (domain.RoomID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generateLocked()
}

func (r *RoomRegistry) generateLocked() (domain.RoomID, error) {
	for attempt := 1; attempt <= MaxRoomIDAttempts; attempt++ {
		id, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("generate room id: %w", err)
		}
		if _, taken := r.rooms[id]; !taken && id != domain.NewRoomSentinel && id != "" {
			return id, nil
		}
		log.Debug().Str("module", "app.registry").Str("room", string(id)).Int("attempt", attempt).Msg("room id collision")
	}
	return "", ErrRoomIDExhausted
}

func (r *RoomRegistry) Exists(id domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[id]
	return ok
}

func (r *RoomRegistry) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Members returns the connection ids in the room, nil if it does not exist.
func (r *RoomRegistry) Members(id domain.RoomID) []core.SessionID {
	room, ok := r.GetRoom(id)
	if !ok {
		return nil
	}
	sessions := room.Sessions()
	out := make([]core.SessionID, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID())
	}
	return out
}

func (r *RoomRegistry) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: room.MemberCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateRoom runs welcome before the room is published.
func (r *RoomRegistry) CreateRoom(host core.MemberSession, welcome core.Welcome) (core.RoomService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.generateLocked()
	if err != nil {
		return nil, err
	}
	room := core.NewRoomService(&domain.Room{ID: id, Host: host.ID(), CreatedAt: r.now()})
	if welcome != nil {
		welcome(room)
	}
	room.AddMember(host)
	r.rooms[id] = room
	log.Info().Str("module", "app.registry").Str("room", string(id)).Str("sid", string(host.ID())).Msg("room created")
	return room, nil
}

// JoinRoom checks existence and joins under one lock, so a room cannot
// vanish between the two. welcome runs before ms is added.
func (r *RoomRegistry) JoinRoom(id domain.RoomID, ms core.MemberSession, welcome core.Welcome) (core.RoomService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if welcome != nil {
		welcome(room)
	}
	room.AddMember(ms)
	return room, nil
}

func (r *RoomRegistry) Leave(id domain.RoomID, sid core.SessionID) (core.RoomService, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, false
	}
	if _, removed := room.RemoveMember(sid); !removed {
		return room, false
	}
	if room.MemberCount() == 0 {
		delete(r.rooms, id)
		log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room emptied")
	}
	return room, true
}

func (r *RoomRegistry) DestroyRoom(id domain.RoomID) []core.MemberSession {
	r.mu.Lock()
	room, ok := r.rooms[id]
	delete(r.rooms, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room destroyed")
	return room.Sessions()
}

func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

package client

import "sync"

const (
	PlayStatePlaying   = "playing"
	PlayStatePaused    = "paused"
	PlayStateBuffering = "buffering"
	PlayStateStopped   = "stopped"
)

// PlaybackState is relayed between members, never stored by the server.
type PlaybackState struct {
	Key   string `json:"key,omitempty"`
	State string `json:"state"`
	Time  *int64 `json:"time,omitempty"`
}

// Millis is a helper for PlaybackState.Time.
func Millis(ms int64) *int64 { return &ms }

// playbackCache keeps the last state this client pushed.
type playbackCache struct {
	mu    sync.Mutex
	state *PlaybackState
}

func (c *playbackCache) set(ps PlaybackState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = &ps
}

func (c *playbackCache) get() (PlaybackState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return PlaybackState{}, false
	}
	return *c.state, true
}

func (c *playbackCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = nil
}

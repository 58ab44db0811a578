package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"lyrics-sync-go/playback"
)

var errRemotePlayer = errors.New("host player is remote; position comes from announcements")

// hostPlayer is the playback source behind the /player endpoints. The host
// announces positions over HTTP, so from the daemon's point of view every
// device is remote. A resync nudge is parked until the host polls the player
// state and re-announces.
type hostPlayer struct {
	mu              sync.Mutex
	state           playback.RemoteState
	resyncRequested bool
}

func newHostPlayer() *hostPlayer {
	return &hostPlayer{}
}

func (p *hostPlayer) IsLocal() bool { return false }

func (p *hostPlayer) Position(context.Context) (time.Duration, error) {
	return 0, errRemotePlayer
}

func (p *hostPlayer) Resume(context.Context) error {
	p.mu.Lock()
	p.resyncRequested = true
	p.mu.Unlock()
	return nil
}

func (p *hostPlayer) RemoteState() playback.RemoteState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Announce records the position the host reported at the given time and
// clears any pending nudge.
func (p *hostPlayer) Announce(position time.Duration, at time.Time) {
	p.mu.Lock()
	p.state = playback.RemoteState{PositionAsOf: position, Timestamp: at}
	p.resyncRequested = false
	p.mu.Unlock()
}

// Reset forgets the last announcement. A new track starts with nothing
// announced, so the clock does not jump to the previous track's position.
func (p *hostPlayer) Reset() {
	p.mu.Lock()
	p.state = playback.RemoteState{}
	p.resyncRequested = false
	p.mu.Unlock()
}

// ResyncRequested reports whether the clock asked for a fresh announcement
// since the last one.
func (p *hostPlayer) ResyncRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resyncRequested
}

// Package playback keeps a smooth, drift-corrected estimate of the playback
// position. Every frame advances the estimate; authoritative snapshots pulled
// from a Source on a backoff schedule pull it back in line when it drifts.
package playback

import (
	"context"
	"time"
)

// Source is the authority on where playback actually is.
type Source interface {
	// IsLocal reports whether audio is playing on this device, in which case
	// Position is cheap and exact.
	IsLocal() bool

	// Position returns the local transport's current position.
	Position(ctx context.Context) (time.Duration, error)

	// Resume asks a remote device to re-announce its state. It is only used
	// as a nudge while a resync is pending after a track change or play.
	Resume(ctx context.Context) error

	// RemoteState returns the last state a remote device announced.
	RemoteState() RemoteState
}

// RemoteState is a remote device's last announced position.
type RemoteState struct {
	PositionAsOf time.Duration // position at Timestamp
	Timestamp    time.Time     // wall clock time of the announcement
}

// SyncedPosition is one authoritative snapshot. An anchored snapshot keeps
// moving with the wall clock from CapturedAt; an unanchored one is a fixed
// position (a paused remote device).
type SyncedPosition struct {
	CapturedAt time.Time
	Position   time.Duration
	Anchored   bool
}

// seconds returns the snapshot's position as of now.
func (p SyncedPosition) seconds(now time.Time) float64 {
	s := p.Position.Seconds()
	if p.Anchored {
		s += now.Sub(p.CapturedAt).Seconds()
	}
	return s
}

// TimeStep is published whenever the timestamp changes. A resync step jumped
// straight to an authoritative position and reports a zero delta.
type TimeStep struct {
	DeltaTime float64 `json:"deltaTime"`
	Resync    bool    `json:"resync"`
}

package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"lyrics-sync-go/epoch"
	"lyrics-sync-go/events"
	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	// Below this discrepancy a playing estimate ignores the snapshot.
	playingTolerance = 0.075
	// Above this discrepancy a paused estimate snaps to the snapshot.
	pausedTolerance = 0.05

	steadySyncInterval = time.Second / 30
)

// resyncTimings is the delay before each remote resync attempt following a
// track change or play. Once exhausted, syncing settles at steadySyncInterval.
var resyncTimings = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	150 * time.Millisecond,
	750 * time.Millisecond,
}

// Synchronizer owns the playback clock state.
type Synchronizer struct {
	source        Source
	guard         *epoch.Guard
	now           func() time.Time
	frameInterval time.Duration

	mu          sync.Mutex
	timestamp   float64
	playing     bool
	hasSong     bool
	lastFrameAt time.Time
	snapshot    *SyncedPosition
	budget      int

	wake chan struct{}

	// Stepped fires after every timestamp change.
	Stepped events.Signal[TimeStep]
}

type Option func(*Synchronizer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithFrameInterval sets how often Run advances the clock.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.frameInterval = d
		}
	}
}

// NewSynchronizer creates a synchronizer reading from source. Snapshots that
// were requested under an older epoch of guard are discarded.
func NewSynchronizer(source Source, guard *epoch.Guard, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:        source,
		guard:         guard,
		now:           time.Now,
		frameInterval: time.Second / 30,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastFrameAt = s.now()
	return s
}

// Timestamp returns the current estimate in seconds.
func (s *Synchronizer) Timestamp() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestamp
}

func (s *Synchronizer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SongChanged resets the clock for a new track and restarts the resync
// backoff. hasSong is false when nothing is loaded.
func (s *Synchronizer) SongChanged(hasSong bool) {
	s.mu.Lock()
	s.hasSong = hasSong
	s.timestamp = 0
	s.snapshot = nil
	s.budget = len(resyncTimings)
	s.mu.Unlock()
	s.poke()
}

// SetPlaying records a play state change and reports whether it changed.
// Playing restarts the resync backoff; pausing cancels it.
func (s *Synchronizer) SetPlaying(playing bool) bool {
	s.mu.Lock()
	if s.playing == playing {
		s.mu.Unlock()
		return false
	}
	s.playing = playing
	if playing {
		s.budget = len(resyncTimings)
	} else {
		s.budget = 0
	}
	s.mu.Unlock()

	s.poke()
	return true
}

// PushSnapshot hands the synchronizer an authoritative position. It is
// consumed by the next frame.
func (s *Synchronizer) PushSnapshot(p SyncedPosition) {
	s.mu.Lock()
	s.snapshot = &p
	s.mu.Unlock()
}

func (s *Synchronizer) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Step advances the clock by one frame and publishes the resulting TimeStep.
// Nothing is published without an active song or while paused with no
// meaningful correction.
func (s *Synchronizer) Step() {
	now := s.now()

	s.mu.Lock()
	delta := now.Sub(s.lastFrameAt).Seconds()
	s.lastFrameAt = now
	snapshot := s.snapshot
	s.snapshot = nil

	if !s.hasSong {
		s.mu.Unlock()
		return
	}

	// Snapshots are judged against where the clock would be after this frame.
	estimate := s.timestamp
	if s.playing {
		estimate += delta
	}

	var step TimeStep
	changed := false
	switch {
	case s.playing:
		if snapshot == nil || math.Abs(snapshot.seconds(now)-estimate) < playingTolerance {
			s.timestamp = estimate
			step = TimeStep{DeltaTime: delta}
		} else {
			s.timestamp = snapshot.seconds(now)
			step = TimeStep{Resync: true}
		}
		changed = true
	case snapshot != nil && math.Abs(snapshot.seconds(now)-estimate) > pausedTolerance:
		s.timestamp = snapshot.seconds(now)
		step = TimeStep{Resync: true}
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.Stepped.Publish(step)
	}
}

// Sync pulls one snapshot from the source and returns the delay before the
// next sync should run.
func (s *Synchronizer) Sync(ctx context.Context) time.Duration {
	startedAt := s.now()
	captured := s.guard.Current()

	if s.source.IsLocal() {
		position, err := s.source.Position(ctx)
		if err != nil {
			log.Warnf("%s Failed to read local position: %v", logcolors.LogClock, err)
			return steadySyncInterval
		}
		s.pushIfCurrent(captured, SyncedPosition{CapturedAt: startedAt, Position: position, Anchored: true})
		return steadySyncInterval
	}

	s.mu.Lock()
	nudge := s.budget > 0 && s.playing
	s.mu.Unlock()
	if nudge {
		if err := s.source.Resume(ctx); err != nil {
			log.Debugf("%s Resync nudge failed: %v", logcolors.LogClock, err)
		}
	}

	s.mu.Lock()
	s.budget = max(0, s.budget-1)
	budget := s.budget
	playing := s.playing
	s.mu.Unlock()

	state := s.source.RemoteState()
	if state.Timestamp.IsZero() {
		// Nothing announced for this track yet.
		return remoteDelay(budget)
	}
	if playing {
		s.pushIfCurrent(captured, SyncedPosition{
			CapturedAt: startedAt,
			Position:   state.PositionAsOf + s.now().Sub(state.Timestamp),
			Anchored:   true,
		})
	} else {
		s.pushIfCurrent(captured, SyncedPosition{Position: state.PositionAsOf})
	}

	return remoteDelay(budget)
}

func (s *Synchronizer) pushIfCurrent(captured epoch.Epoch, p SyncedPosition) {
	if !s.guard.IsCurrent(captured) {
		log.Debugf("%s Dropping snapshot from a previous track", logcolors.LogClock)
		return
	}
	s.PushSnapshot(p)
}

func remoteDelay(budget int) time.Duration {
	if budget == 0 {
		return steadySyncInterval
	}
	return resyncTimings[len(resyncTimings)-budget]
}

// Run drives frames and syncing until ctx is done. Syncing only happens while
// playing; a pause clears the pending resync and the next play or track change
// starts over at the first resync timing.
func (s *Synchronizer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.syncLoop(ctx)
	}()

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()
	log.Infof("%s Clock running at %v per frame", logcolors.LogClock, s.frameInterval)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

func (s *Synchronizer) syncLoop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			timer.Stop()
			if s.IsPlaying() {
				timer.Reset(resyncTimings[0])
			}
		case <-timer.C:
			if !s.IsPlaying() {
				continue
			}
			timer.Reset(s.Sync(ctx))
		}
	}
}

// Package engine owns the player state: the active song, its details and
// lyrics, and the playback clock. Track changes advance an epoch; every
// asynchronous result is checked against it before it is published.
package engine

import (
	"context"
	"sync"
	"time"

	"lyrics-sync-go/cache"
	"lyrics-sync-go/epoch"
	"lyrics-sync-go/events"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/playback"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/services/trackinfo"
	"lyrics-sync-go/stats"

	log "github.com/sirupsen/logrus"
)

const (
	ProviderLyricsNamespace    = "Player_ProviderLyrics"
	ProviderLyricsVersion      = 3
	TransformedLyricsNamespace = "Player_TransformedLyrics"
	TransformedLyricsVersion   = 3
	LrclibLyricsNamespace      = "Player_LrclibLyrics"
	LrclibLyricsVersion        = 2
)

var lyricsExpiration = cache.Expiration{Count: 1, Unit: cache.Months}

// DetailsSource looks up track information for streamed songs.
type DetailsSource interface {
	Lookup(ctx context.Context, id, internalID string) (*trackinfo.TrackInformation, error)
}

// Options wires an Engine to its collaborators. Backend, Primary and Playback
// are required.
type Options struct {
	Context     context.Context
	Backend     cache.Backend
	Primary     providers.Provider
	Fallback    providers.Provider
	Details     DetailsSource
	Transformer lyrics.Transformer
	Playback    playback.Source
	Stats       *stats.Stats

	DetailsWaitTimeout time.Duration
	FrameInterval      time.Duration

	// Now overrides the clock used by the caches and the synchronizer.
	Now func() time.Time
}

// State is a point-in-time copy of the player state.
type State struct {
	Song          *Song               `json:"song"`
	Details       *trackinfo.Details  `json:"details"`
	DetailsLoaded bool                `json:"detailsLoaded"`
	Lyrics        *lyrics.Transformed `json:"lyrics"`
	LyricsLoaded  bool                `json:"lyricsLoaded"`
	IsPlaying     bool                `json:"isPlaying"`
	Timestamp     float64             `json:"timestamp"`
}

// LyricsUpdate is published with SongLyricsLoaded. Loaded is false while a
// resolution is in progress; a loaded update with nil Lyrics means the song
// has none.
type LyricsUpdate struct {
	Loaded bool
	Lyrics *lyrics.Transformed
}

type Engine struct {
	ctx         context.Context
	guard       *epoch.Guard
	clock       *playback.Synchronizer
	primary     providers.Provider
	fallback    providers.Provider
	details     DetailsSource
	transformer lyrics.Transformer
	stats       *stats.Stats
	detailsWait time.Duration

	providerStore    *cache.Store[lyrics.Outcome]
	transformedStore *cache.Store[lyrics.TransformedOutcome]
	lrclibStore      *cache.Store[lyrics.Outcome]
	fallbackSettings *cache.InstantStore[FallbackSettings]

	changeMu sync.Mutex
	// publishMu orders epoch advances against publications, so no subscriber
	// sees an old song's result after the new song's updates. Subscribers must
	// not call SetSong or RefreshCurrentLyrics.
	publishMu   sync.Mutex
	mu          sync.RWMutex
	song        *Song
	songDetails *trackinfo.Details
	detailsDone chan struct{}
	detailsOK   bool
	lyrics      *lyrics.Transformed
	lyricsOK    bool

	inflight sync.WaitGroup

	SongChanged       events.Signal[*Song]
	SongDetailsLoaded events.Signal[*trackinfo.Details]
	SongLyricsLoaded  events.Signal[LyricsUpdate]
	IsPlayingChanged  events.Signal[bool]
}

func New(opts Options) *Engine {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Transformer == nil {
		opts.Transformer = lyrics.PassthroughTransformer{}
	}
	if opts.Stats == nil {
		opts.Stats = stats.Get()
	}
	if opts.DetailsWaitTimeout <= 0 {
		opts.DetailsWaitTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	guard := &epoch.Guard{}
	var storeOpts []cache.Option
	storeOpts = append(storeOpts, cache.WithClock(opts.Now))

	clockOpts := []playback.Option{playback.WithClock(opts.Now)}
	if opts.FrameInterval > 0 {
		clockOpts = append(clockOpts, playback.WithFrameInterval(opts.FrameInterval))
	}

	e := &Engine{
		ctx:         opts.Context,
		guard:       guard,
		clock:       playback.NewSynchronizer(opts.Playback, guard, clockOpts...),
		primary:     opts.Primary,
		fallback:    opts.Fallback,
		details:     opts.Details,
		transformer: opts.Transformer,
		stats:       opts.Stats,
		detailsWait: opts.DetailsWaitTimeout,

		providerStore: cache.NewStore[lyrics.Outcome](opts.Backend,
			ProviderLyricsNamespace, ProviderLyricsVersion, lyricsExpiration, storeOpts...),
		transformedStore: cache.NewStore[lyrics.TransformedOutcome](opts.Backend,
			TransformedLyricsNamespace, TransformedLyricsVersion, lyricsExpiration, storeOpts...),
		lrclibStore: cache.NewStore[lyrics.Outcome](opts.Backend,
			LrclibLyricsNamespace, LrclibLyricsVersion, lyricsExpiration, storeOpts...),
		fallbackSettings: newFallbackSettingsStore(opts.Backend),

		detailsDone: closedChan(),
		detailsOK:   true,
		lyricsOK:    true,
	}
	return e
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// Run drives the playback clock until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.clock.Run(ctx)
}

// Wait blocks until every background lookup started so far has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// TimeStepped fires whenever the playback timestamp changes.
func (e *Engine) TimeStepped() *events.Signal[playback.TimeStep] {
	return &e.clock.Stepped
}

// State returns a copy of the current player state.
func (e *Engine) State() State {
	e.mu.RLock()
	s := State{
		Song:          e.song,
		Details:       e.songDetails,
		DetailsLoaded: e.detailsOK,
		Lyrics:        e.lyrics,
		LyricsLoaded:  e.lyricsOK,
	}
	e.mu.RUnlock()
	s.IsPlaying = e.clock.IsPlaying()
	s.Timestamp = e.clock.Timestamp()
	return s
}

// SetSong makes song the active item, which may be nil when the player is
// empty. Work still running for the previous song is left to finish and its
// results are dropped.
func (e *Engine) SetSong(song *Song) {
	e.changeMu.Lock()
	defer e.changeMu.Unlock()

	done := make(chan struct{})
	e.publishMu.Lock()
	e.mu.Lock()
	ep := e.guard.Advance()
	e.song = song
	e.songDetails, e.detailsOK = nil, false
	e.detailsDone = done
	e.mu.Unlock()
	e.publishMu.Unlock()

	if song != nil {
		log.Infof("%s Song changed to %s (%s), epoch %d", logcolors.LogEpoch, song.URI, song.Type, ep)
	} else {
		log.Infof("%s Player is empty, epoch %d", logcolors.LogEpoch, ep)
	}

	e.clock.SongChanged(song != nil)
	e.loadSongDetails(ep, song, done)
	e.loadSongLyrics(ep, song, done, false)
	e.SongChanged.Publish(song)
}

// SetPlaying records the host player's play state.
func (e *Engine) SetPlaying(playing bool) {
	if e.clock.SetPlaying(playing) {
		e.IsPlayingChanged.Publish(playing)
	}
}

// PushPosition applies an authoritative position, such as one reported after
// a seek. It takes effect on the next frame.
func (e *Engine) PushPosition(p playback.SyncedPosition) {
	e.clock.PushSnapshot(p)
}

// DurationString formats the active song's duration. It panics for DJ items,
// which have no duration.
func (e *Engine) DurationString() string {
	song := e.currentSong()
	if song != nil && song.Type == SongDJ {
		panic("engine: cannot get duration of a DJ track")
	}
	var duration float64
	if song != nil {
		duration = song.Duration
	}
	return formatClock(duration, duration)
}

// TimestampString formats the playback position, padded like DurationString.
// It panics for DJ items.
func (e *Engine) TimestampString() string {
	song := e.currentSong()
	if song != nil && song.Type == SongDJ {
		panic("engine: cannot get timestamp of a DJ track")
	}
	var duration float64
	if song != nil {
		duration = song.Duration
	}
	return formatClock(e.clock.Timestamp(), duration)
}

func (e *Engine) currentSong() *Song {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.song
}

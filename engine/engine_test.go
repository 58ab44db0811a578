package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/playback"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/services/trackinfo"
	"lyrics-sync-go/stats"
)

const (
	songA = "4uLU6hMCjMI75M1A2tKUQC"
	songB = "7ouMYWpwJ422jRcDASZB7P"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemBackend() *memBackend { return &memBackend{data: map[string]string{}} }

func (m *memBackend) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memBackend) raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

type fakeProvider struct {
	name  string
	fetch func(req providers.Request) (lyrics.Lyrics, error)

	mu       sync.Mutex
	requests []providers.Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchLyrics(_ context.Context, req providers.Request) (lyrics.Lyrics, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.fetch == nil {
		return nil, nil
	}
	return f.fetch(req)
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProvider) lastRequest() providers.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func returning(l lyrics.Lyrics) func(providers.Request) (lyrics.Lyrics, error) {
	return func(providers.Request) (lyrics.Lyrics, error) { return l, nil }
}

type fakeDetails struct {
	calls atomic.Int32
	err   error
}

func (f *fakeDetails) Lookup(_ context.Context, id, internalID string) (*trackinfo.TrackInformation, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &trackinfo.TrackInformation{
		Name:   "Song " + id + " - Remastered 2011",
		Artist: []trackinfo.Artist{{Name: "Artist"}, {Name: "Guest"}},
		Album:  trackinfo.Album{Name: "Album"},
	}, nil
}

type countingTransformer struct {
	calls atomic.Int32
}

func (c *countingTransformer) Transform(ctx context.Context, l lyrics.Lyrics) (*lyrics.Transformed, error) {
	c.calls.Add(1)
	return lyrics.PassthroughTransformer{}.Transform(ctx, l)
}

type idleSource struct{}

func (idleSource) IsLocal() bool                                   { return true }
func (idleSource) Position(context.Context) (time.Duration, error) { return 0, nil }
func (idleSource) Resume(context.Context) error                    { return nil }
func (idleSource) RemoteState() playback.RemoteState               { return playback.RemoteState{} }

func staticLyrics(text string) *lyrics.Static {
	return &lyrics.Static{Lines: []lyrics.TextMetadata{{Text: text}}}
}

func lineLyrics(text string) *lyrics.LineSynced {
	return &lyrics.LineSynced{
		TimeMetadata: lyrics.TimeMetadata{StartTime: 1, EndTime: 4},
		Content: []lyrics.LineContent{{
			Type:         lyrics.ContentVocal,
			TimeMetadata: lyrics.TimeMetadata{StartTime: 1, EndTime: 4},
			Text:         text,
		}},
	}
}

func syllableLyrics(text string) *lyrics.SyllableSynced {
	span := lyrics.TimeMetadata{StartTime: 1, EndTime: 2}
	return &lyrics.SyllableSynced{
		TimeMetadata: span,
		Content: []lyrics.SyllableContent{{
			Type:         lyrics.ContentVocal,
			TimeMetadata: span,
			Lead: &lyrics.SyllableVocal{
				TimeMetadata: span,
				Syllables:    []lyrics.Syllable{{TimeMetadata: span, Text: text}},
			},
		}},
	}
}

type harness struct {
	engine      *Engine
	primary     *fakeProvider
	fallback    *fakeProvider
	details     *fakeDetails
	transformer *countingTransformer
	backend     *memBackend
	stats       *stats.Stats

	mu      sync.Mutex
	updates []LyricsUpdate
}

func newHarness(t *testing.T, primary, fallback lyrics.Lyrics) *harness {
	t.Helper()
	return newHarnessWith(t, newMemBackend(), &fakeProvider{name: "primary", fetch: returning(primary)},
		&fakeProvider{name: "lrclib", fetch: returning(fallback)})
}

func newHarnessWith(t *testing.T, backend *memBackend, primary, fallback *fakeProvider) *harness {
	t.Helper()
	h := &harness{
		primary:     primary,
		fallback:    fallback,
		details:     &fakeDetails{},
		transformer: &countingTransformer{},
		backend:     backend,
		stats:       stats.New(),
	}
	h.engine = New(Options{
		Backend:            backend,
		Primary:            primary,
		Fallback:           fallback,
		Details:            h.details,
		Transformer:        h.transformer,
		Playback:           idleSource{},
		Stats:              h.stats,
		DetailsWaitTimeout: time.Second,
	})
	h.engine.SongLyricsLoaded.Subscribe(func(u LyricsUpdate) {
		h.mu.Lock()
		h.updates = append(h.updates, u)
		h.mu.Unlock()
	})
	return h
}

func (h *harness) play(t *testing.T, id string, duration float64) {
	t.Helper()
	song, err := NewStreamedSong(id, duration)
	if err != nil {
		t.Fatalf("NewStreamedSong: %v", err)
	}
	h.engine.SetSong(song)
	h.engine.Wait()
}

func (h *harness) publishedText(t *testing.T) string {
	t.Helper()
	st := h.engine.State()
	if !st.LyricsLoaded {
		t.Fatal("Expected lyrics to be loaded")
	}
	if st.Lyrics == nil {
		return ""
	}
	return lyrics.Text(st.Lyrics.Lyrics)[0]
}

func TestSetSong_PublishesPrimaryLyrics(t *testing.T) {
	h := newHarness(t, syllableLyrics("primary"), lineLyrics("lrclib"))
	h.play(t, songA, 200)

	if got := h.publishedText(t); got != "primary" {
		t.Errorf("Expected primary lyrics, got %q", got)
	}
	if h.fallback.calls() != 0 {
		t.Error("Expected syllable lyrics never to be replaced")
	}
	if h.primary.lastRequest().TrackID != songA {
		t.Errorf("Expected primary request for %s, got %+v", songA, h.primary.lastRequest())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.updates) != 2 || h.updates[0].Loaded || !h.updates[1].Loaded {
		t.Errorf("Expected loading then loaded updates, got %+v", h.updates)
	}
}

func TestSetSong_NonStreamedHasNoLyrics(t *testing.T) {
	tests := []struct {
		name string
		song *Song
	}{
		{"empty player", nil},
		{"local file", &Song{Type: SongLocal, URI: "spotify:local:a:b:c:200", Duration: 200, Name: "Demo", Album: "Tapes", Artists: []string{"Me"}}},
		{"dj", &Song{Type: SongDJ, URI: "spotify:dj", Action: "Up next"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, lineLyrics("primary"), lineLyrics("lrclib"))
			h.engine.SetSong(tt.song)

			// Published synchronously, before any background work.
			st := h.engine.State()
			if !st.LyricsLoaded || st.Lyrics != nil {
				t.Errorf("Expected loaded with no lyrics, got %+v", st)
			}
			if !st.DetailsLoaded {
				t.Error("Expected details to be loaded immediately")
			}
			h.engine.Wait()
			if h.primary.calls() != 0 || h.fallback.calls() != 0 {
				t.Error("Expected no provider calls")
			}
		})
	}
}

func TestSetSong_LocalDetails(t *testing.T) {
	h := newHarness(t, nil, nil)
	var got *trackinfo.Details
	h.engine.SongDetailsLoaded.Subscribe(func(d *trackinfo.Details) { got = d })

	h.engine.SetSong(&Song{Type: SongLocal, Name: "Demo", Album: "Tapes", Artists: []string{"Me"}})

	if got == nil || !got.IsLocal || got.Name != "Demo" || got.PrimaryArtist() != "Me" {
		t.Errorf("Unexpected local details %+v", got)
	}
	if h.details.calls.Load() != 0 {
		t.Error("Expected no metadata lookup for a local file")
	}
}

func TestFallbackRules(t *testing.T) {
	tests := []struct {
		name         string
		primary      lyrics.Lyrics
		fallback     lyrics.Lyrics
		wantText     string
		wantSearch   bool
		wantNegative bool
	}{
		{"no primary takes line", nil, lineLyrics("lrclib"), "lrclib", true, false},
		{"no primary takes static", nil, staticLyrics("lrclib"), "lrclib", true, false},
		{"static upgraded to line", staticLyrics("primary"), lineLyrics("lrclib"), "lrclib", true, false},
		{"static not replaced by static", staticLyrics("primary"), staticLyrics("lrclib"), "primary", true, true},
		{"line replaced by line", lineLyrics("primary"), lineLyrics("lrclib"), "lrclib", true, false},
		{"line never downgraded", lineLyrics("primary"), staticLyrics("lrclib"), "primary", true, true},
		{"syllable never searched", syllableLyrics("primary"), lineLyrics("lrclib"), "primary", false, false},
		{"nothing anywhere", nil, nil, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.primary, tt.fallback)
			h.play(t, songA, 180)

			if got := h.publishedText(t); got != tt.wantText {
				t.Errorf("Expected %q, got %q", tt.wantText, got)
			}
			if searched := h.fallback.calls() > 0; searched != tt.wantSearch {
				t.Errorf("Expected search=%v, got %v", tt.wantSearch, searched)
			}

			raw, cached := h.backend.raw(LrclibLyricsNamespace + ":" + songA)
			if tt.wantSearch && !cached {
				t.Fatal("Expected LRCLIB outcome to be cached")
			}
			if cached {
				negative := strings.Contains(raw, `"value":false`)
				if negative != tt.wantNegative {
					t.Errorf("Expected negative=%v, cache entry %s", tt.wantNegative, raw)
				}
			}
		})
	}
}

func TestFallbackQueryUsesDetails(t *testing.T) {
	h := newHarness(t, nil, lineLyrics("lrclib"))
	h.play(t, songA, 245.5)

	req := h.fallback.lastRequest()
	if req.Name != "Song "+songA {
		t.Errorf("Expected filtered track name, got %q", req.Name)
	}
	if req.Artist != "Artist" || req.Album != "Album" || req.Duration != 245.5 {
		t.Errorf("Unexpected request %+v", req)
	}
}

func TestFallbackSkippedWithoutDetails(t *testing.T) {
	h := newHarness(t, nil, lineLyrics("lrclib"))
	h.details.err = errors.New("metadata unavailable")
	h.play(t, songA, 180)

	if h.fallback.calls() != 0 {
		t.Error("Expected no fallback search without song details")
	}
	if got := h.publishedText(t); got != "" {
		t.Errorf("Expected no lyrics, got %q", got)
	}
}

func TestFallbackDisabled(t *testing.T) {
	backend := newMemBackend()
	h := newHarnessWith(t, backend, &fakeProvider{name: "primary"}, &fakeProvider{name: "lrclib", fetch: returning(lineLyrics("lrclib"))})

	if !h.engine.GetLrclibFallbackEnabled() {
		t.Fatal("Expected fallback enabled by default")
	}
	if err := h.engine.SetLrclibFallbackEnabled(false); err != nil {
		t.Fatalf("SetLrclibFallbackEnabled: %v", err)
	}
	h.play(t, songA, 180)

	if h.fallback.calls() != 0 {
		t.Error("Expected no fallback search while disabled")
	}

	// The flag survives a restart on the same backend.
	restarted := newHarnessWith(t, backend, &fakeProvider{name: "primary"}, &fakeProvider{name: "lrclib"})
	if restarted.engine.GetLrclibFallbackEnabled() {
		t.Error("Expected persisted flag to stay disabled")
	}
}

func TestNegativeOutcomesAreCached(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.play(t, songA, 180)
	h.play(t, songB, 180)
	h.play(t, songA, 180)

	if h.primary.calls() != 2 {
		t.Errorf("Expected one primary fetch per track, got %d", h.primary.calls())
	}
	if h.fallback.calls() != 2 {
		t.Errorf("Expected one fallback search per track, got %d", h.fallback.calls())
	}
	if h.stats.NegativeCacheHits.Load() == 0 {
		t.Error("Expected negative cache hits to be recorded")
	}
}

func TestPrimaryFailureTreatedAsNoLyrics(t *testing.T) {
	primary := &fakeProvider{name: "primary", fetch: func(providers.Request) (lyrics.Lyrics, error) {
		return nil, errors.New("502 bad gateway")
	}}
	h := newHarnessWith(t, newMemBackend(), primary, &fakeProvider{name: "lrclib", fetch: returning(lineLyrics("lrclib"))})
	h.play(t, songA, 180)

	if got := h.publishedText(t); got != "lrclib" {
		t.Errorf("Expected fallback lyrics after primary failure, got %q", got)
	}
	raw, ok := h.backend.raw(ProviderLyricsNamespace + ":" + songA)
	if !ok || !strings.Contains(raw, `"value":false`) {
		t.Errorf("Expected failure cached as negative, got %q", raw)
	}
	if h.stats.PrimaryFailures.Load() != 1 {
		t.Errorf("Expected one primary failure, got %d", h.stats.PrimaryFailures.Load())
	}
}

func TestTransformedLyricsAreReused(t *testing.T) {
	h := newHarness(t, syllableLyrics("primary"), nil)
	h.play(t, songA, 180)
	h.play(t, songB, 180)
	h.play(t, songA, 180)

	if got := h.transformer.calls.Load(); got != 2 {
		t.Errorf("Expected cached transform to be reused, got %d transforms", got)
	}
	if got := h.publishedText(t); got != "primary" {
		t.Errorf("Expected cached lyrics, got %q", got)
	}
}

func TestRefreshCurrentLyrics_BypassesCaches(t *testing.T) {
	h := newHarness(t, staticLyrics("primary"), staticLyrics("lrclib"))
	h.play(t, songA, 180)

	if !h.engine.RefreshCurrentLyrics() {
		t.Fatal("Expected refresh to start")
	}
	h.engine.Wait()

	if h.primary.calls() != 2 || h.fallback.calls() != 2 || h.transformer.calls.Load() != 2 {
		t.Errorf("Expected every stage to run again, got primary=%d fallback=%d transforms=%d",
			h.primary.calls(), h.fallback.calls(), h.transformer.calls.Load())
	}
	if h.stats.ForcedRefreshes.Load() != 1 {
		t.Errorf("Expected one forced refresh, got %d", h.stats.ForcedRefreshes.Load())
	}

	// Forced results are still written back.
	h.play(t, songA, 180)
	if h.primary.calls() != 2 {
		t.Errorf("Expected cache hit after refresh, got %d primary calls", h.primary.calls())
	}
}

func TestRefreshCurrentLyrics_NoStreamedSong(t *testing.T) {
	for _, song := range []*Song{nil, {Type: SongLocal}, {Type: SongDJ}} {
		h := newHarness(t, lineLyrics("primary"), nil)
		h.engine.SetSong(song)
		h.engine.Wait()

		h.mu.Lock()
		before := len(h.updates)
		h.mu.Unlock()

		if h.engine.RefreshCurrentLyrics() {
			t.Error("Expected refresh to be a no-op")
		}
		h.engine.Wait()

		h.mu.Lock()
		after := len(h.updates)
		h.mu.Unlock()
		if after != before {
			t.Errorf("Expected no events, got %d new updates", after-before)
		}
		if h.primary.calls() != 0 {
			t.Error("Expected no network calls")
		}
	}
}

func TestStaleResultIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	primary := &fakeProvider{name: "primary", fetch: func(req providers.Request) (lyrics.Lyrics, error) {
		if req.TrackID == songA {
			close(started)
			<-release
			return syllableLyrics("stale"), nil
		}
		return syllableLyrics("fresh"), nil
	}}
	h := newHarnessWith(t, newMemBackend(), primary, &fakeProvider{name: "lrclib"})

	first, _ := NewStreamedSong(songA, 180)
	h.engine.SetSong(first)
	<-started

	second, _ := NewStreamedSong(songB, 180)
	h.engine.SetSong(second)

	// Let the first resolution finish only after the second published.
	deadline := time.Now().Add(2 * time.Second)
	for !h.engine.State().LyricsLoaded && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	h.engine.Wait()

	if got := h.publishedText(t); got != "fresh" {
		t.Errorf("Expected current song's lyrics, got %q", got)
	}
	h.mu.Lock()
	for _, u := range h.updates {
		if u.Lyrics != nil && lyrics.Text(u.Lyrics.Lyrics)[0] == "stale" {
			t.Error("Stale lyrics were published")
		}
	}
	h.mu.Unlock()
	if h.stats.StaleDiscards.Load() == 0 {
		t.Error("Expected the stale result to be counted")
	}
}

func TestStaleResultLeavesLoadingState(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	primary := &fakeProvider{name: "primary", fetch: func(req providers.Request) (lyrics.Lyrics, error) {
		once.Do(func() { close(started) })
		<-release
		return syllableLyrics(req.TrackID), nil
	}}
	h := newHarnessWith(t, newMemBackend(), primary, &fakeProvider{name: "lrclib"})

	first, _ := NewStreamedSong(songA, 180)
	h.engine.SetSong(first)
	<-started
	second, _ := NewStreamedSong(songB, 180)
	h.engine.SetSong(second)

	// Before anything completes the second song is still loading.
	if st := h.engine.State(); st.LyricsLoaded || st.Lyrics != nil {
		t.Errorf("Expected loading state, got %+v", st)
	}
	close(release)
	h.engine.Wait()

	if got := h.publishedText(t); got != songB {
		t.Errorf("Expected %s lyrics, got %q", songB, got)
	}
}

func TestDurationAndTimestampStrings(t *testing.T) {
	tests := []struct {
		duration float64
		expected string
	}{
		{0, "0:00"},
		{65, "1:05"},
		{599.9, "9:59"},
		{600, "10:00"},
		{3725, "62:05"},
	}
	for _, tt := range tests {
		h := newHarness(t, nil, nil)
		h.engine.SetSong(&Song{Type: SongLocal, Duration: tt.duration})
		if got := h.engine.DurationString(); got != tt.expected {
			t.Errorf("DurationString(%v) = %q, expected %q", tt.duration, got, tt.expected)
		}
	}

	h := newHarness(t, nil, nil)
	h.engine.SetSong(&Song{Type: SongLocal, Duration: 700})
	if got := h.engine.TimestampString(); got != "00:00" {
		t.Errorf("Expected padded timestamp for long tracks, got %q", got)
	}
	h.engine.SetSong(&Song{Type: SongLocal, Duration: 100})
	if got := h.engine.TimestampString(); got != "0:00" {
		t.Errorf("Expected unpadded timestamp, got %q", got)
	}
}

func TestDurationString_PanicsForDJ(t *testing.T) {
	for name, call := range map[string]func(*Engine) string{
		"duration":  (*Engine).DurationString,
		"timestamp": (*Engine).TimestampString,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil, nil)
			h.engine.SetSong(&Song{Type: SongDJ})
			defer func() {
				if recover() == nil {
					t.Error("Expected panic for DJ item")
				}
			}()
			call(h.engine)
		})
	}
}

func TestSetPlaying_PublishesChanges(t *testing.T) {
	h := newHarness(t, nil, nil)
	var changes []bool
	h.engine.IsPlayingChanged.Subscribe(func(p bool) { changes = append(changes, p) })

	h.engine.SetPlaying(true)
	h.engine.SetPlaying(true)
	h.engine.SetPlaying(false)

	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("Expected [true false], got %v", changes)
	}
	if h.engine.State().IsPlaying {
		t.Error("Expected paused state")
	}
}

func TestSongValidate(t *testing.T) {
	tests := []struct {
		name    string
		song    Song
		wantErr bool
	}{
		{"streamed fills internal id", Song{Type: SongStreamed, ID: songA}, false},
		{"streamed without id", Song{Type: SongStreamed}, true},
		{"streamed with bad id", Song{Type: SongStreamed, ID: "nope"}, true},
		{"local", Song{Type: SongLocal}, false},
		{"unknown type", Song{Type: "Podcast"}, true},
		{"negative duration", Song{Type: SongLocal, Duration: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.song.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.song.Type == SongStreamed && len(tt.song.InternalID) != 32 {
				t.Errorf("Expected internal id to be filled, got %q", tt.song.InternalID)
			}
		})
	}
}

func TestImproves(t *testing.T) {
	tests := []struct {
		name      string
		primary   lyrics.Lyrics
		candidate lyrics.Lyrics
		want      bool
	}{
		{"nothing beats nothing", nil, nil, false},
		{"anything beats nothing", nil, staticLyrics("a"), true},
		{"line replaces static", staticLyrics("a"), lineLyrics("b"), true},
		{"static never replaces static", staticLyrics("a"), staticLyrics("b"), false},
		{"line replaces line", lineLyrics("a"), lineLyrics("b"), true},
		{"syllable replaces line", lineLyrics("a"), syllableLyrics("b"), true},
		{"static never replaces line", lineLyrics("a"), staticLyrics("b"), false},
		{"syllable is final", syllableLyrics("a"), syllableLyrics("b"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := improves(tt.primary, tt.candidate); got != tt.want {
				t.Errorf("improves = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSongChange_NoStaleUpdateAfterSongChanged(t *testing.T) {
	primary := &fakeProvider{name: "primary", fetch: func(req providers.Request) (lyrics.Lyrics, error) {
		return syllableLyrics(req.TrackID), nil
	}}
	h := newHarnessWith(t, newMemBackend(), primary, &fakeProvider{name: "lrclib"})

	// The first subscriber stalls while song A's result is being delivered,
	// leaving a window in which song B is selected.
	inPublish := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.engine.SongLyricsLoaded.Subscribe(func(u LyricsUpdate) {
		if u.Lyrics != nil && lyrics.Text(u.Lyrics.Lyrics)[0] == songA {
			once.Do(func() {
				close(inPublish)
				<-release
			})
		}
	})

	var mu sync.Mutex
	var order []string
	record := func(entry string) {
		mu.Lock()
		order = append(order, entry)
		mu.Unlock()
	}
	h.engine.SongLyricsLoaded.Subscribe(func(u LyricsUpdate) {
		if u.Lyrics != nil {
			record("lyrics:" + lyrics.Text(u.Lyrics.Lyrics)[0])
		}
	})
	h.engine.SongChanged.Subscribe(func(s *Song) { record("song:" + s.ID) })

	first, _ := NewStreamedSong(songA, 180)
	h.engine.SetSong(first)
	<-inPublish

	changed := make(chan struct{})
	go func() {
		second, _ := NewStreamedSong(songB, 180)
		h.engine.SetSong(second)
		close(changed)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	<-changed
	h.engine.Wait()

	mu.Lock()
	defer mu.Unlock()
	seenB := false
	for _, entry := range order {
		switch entry {
		case "song:" + songB:
			seenB = true
		case "lyrics:" + songA:
			if seenB {
				t.Fatalf("Song A's lyrics arrived after song B was selected: %v", order)
			}
		}
	}
	if !seenB {
		t.Fatalf("Expected song B to be announced, got %v", order)
	}
	if got := h.publishedText(t); got != songB {
		t.Errorf("Expected song B's lyrics to be current, got %q", got)
	}
}

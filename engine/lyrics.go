package engine

import (
	"time"

	"lyrics-sync-go/epoch"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/services/trackinfo"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RefreshCurrentLyrics resolves the active song's lyrics again, skipping every
// cache read. It does nothing unless a streamed song is active and reports
// whether a refresh started.
func (e *Engine) RefreshCurrentLyrics() bool {
	e.mu.RLock()
	song := e.song
	done := e.detailsDone
	ep := e.guard.Current()
	e.mu.RUnlock()

	if song == nil || song.Type != SongStreamed {
		return false
	}

	log.Infof("%s Refreshing lyrics for %s", logcolors.LogLyrics, song.ID)
	e.loadSongLyrics(ep, song, done, true)
	return true
}

// loadSongLyrics publishes the loading state and starts a resolution for
// song. Anything other than a streamed song has no lyrics.
func (e *Engine) loadSongLyrics(ep epoch.Epoch, song *Song, detailsDone <-chan struct{}, force bool) {
	if !e.publishLyrics(ep, nil, false) {
		return
	}
	if song == nil || song.Type != SongStreamed {
		e.publishLyrics(ep, nil, true)
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.resolveLyrics(ep, song, detailsDone, force)
	}()
}

func (e *Engine) resolveLyrics(ep epoch.Epoch, song *Song, detailsDone <-chan struct{}, force bool) {
	started := time.Now()
	logger := log.WithFields(log.Fields{
		"attempt": uuid.NewString(),
		"track":   song.ID,
		"epoch":   uint64(ep),
	})

	e.stats.Resolutions.Add(1)
	if force {
		e.stats.ForcedRefreshes.Add(1)
	}

	primary := e.loadPrimaryLyrics(song, force, logger)

	var stored lyrics.TransformedOutcome
	hasStored := false
	if !force {
		stored, hasStored = e.transformedStore.GetItem(song.ID)
		e.stats.RecordCacheLookup(hasStored, hasStored && stored.Value == nil)
	}

	var result *lyrics.Transformed
	usedFallback := false
	if details, ok := e.fallbackEligible(ep, primary, detailsDone); ok {
		if fallback := e.loadFallbackLyrics(song, details, primary, force, logger); fallback != nil {
			logger.Infof("%s Using LRCLIB lyrics (%s) instead of primary (%s)",
				logcolors.LogFallback, fallback.Type(), typeOrNone(primary))
			e.stats.FallbackUsed.Add(1)
			usedFallback = true
			result = e.transform(fallback, logger)
			if result != nil {
				e.storeTransformed(song.ID, result, logger)
			}
		}
	}

	if !usedFallback {
		switch {
		case hasStored:
			result = stored.Value
		case primary == nil:
			e.storeTransformed(song.ID, nil, logger)
		default:
			if result = e.transform(primary, logger); result != nil {
				e.storeTransformed(song.ID, result, logger)
			}
		}
	}

	e.stats.RecordResolveTime(time.Since(started))
	if !e.publishLyrics(ep, result, true) {
		e.stats.StaleDiscards.Add(1)
		logger.Debugf("%s Song changed during lyrics loading, ignoring result", logcolors.LogStale)
		return
	}
	if result == nil {
		e.stats.NoLyrics.Add(1)
		logger.Infof("%s No lyrics available", logcolors.LogLyrics)
	} else {
		e.stats.LyricsPublished.Add(1)
		logger.Infof("%s Published %s lyrics (%s)", logcolors.LogLyrics, typeOrNone(result.Lyrics), result.Language)
	}
}

// loadPrimaryLyrics returns the primary provider's lyrics, nil meaning none.
// Fetch failures count as none and are cached like any other outcome.
func (e *Engine) loadPrimaryLyrics(song *Song, force bool, logger *log.Entry) lyrics.Lyrics {
	if !force {
		cached, ok := e.providerStore.GetItem(song.ID)
		e.stats.RecordCacheLookup(ok, ok && !cached.Exists())
		if ok {
			return cached.Lyrics
		}
	}

	e.stats.PrimaryFetches.Add(1)
	l, err := e.primary.FetchLyrics(e.ctx, providers.Request{TrackID: song.ID})
	outcome := lyrics.Found(l)
	if err != nil {
		e.stats.PrimaryFailures.Add(1)
		logger.Warnf("%s Primary lyrics fetch failed: %v", logcolors.LogPrimary, err)
		l, outcome = nil, lyrics.NotFound
	}

	if err := e.providerStore.SetItem(song.ID, outcome); err != nil {
		logger.Warnf("%s Failed to cache provider lyrics: %v", logcolors.LogCache, err)
	}
	return l
}

// fallbackEligible decides whether LRCLIB is worth asking. Syllable lyrics
// are never replaced. Details are waited on, within a bound, because the
// query is built from them.
func (e *Engine) fallbackEligible(ep epoch.Epoch, primary lyrics.Lyrics, detailsDone <-chan struct{}) (*trackinfo.Details, bool) {
	if e.fallback == nil || !e.GetLrclibFallbackEnabled() {
		return nil, false
	}
	if primary != nil && primary.Type() == lyrics.TypeSyllable {
		return nil, false
	}

	timer := time.NewTimer(e.detailsWait)
	defer timer.Stop()
	select {
	case <-detailsDone:
	case <-timer.C:
		log.Debugf("%s Gave up waiting for song details", logcolors.LogFallback)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.guard.IsCurrent(ep) || !e.detailsOK || e.songDetails == nil {
		return nil, false
	}
	return e.songDetails, true
}

// loadFallbackLyrics returns LRCLIB lyrics only when they improve on primary.
// Anything else, including a failed search, is cached as a negative.
func (e *Engine) loadFallbackLyrics(song *Song, details *trackinfo.Details, primary lyrics.Lyrics, force bool, logger *log.Entry) lyrics.Lyrics {
	if !force {
		cached, ok := e.lrclibStore.GetItem(song.ID)
		e.stats.RecordCacheLookup(ok, ok && !cached.Exists())
		if ok {
			if !cached.Exists() {
				logger.Debugf("%s LRCLIB cache hit: no useful lyrics for this track", logcolors.LogFallback)
				return nil
			}
			return cached.Lyrics
		}
	}

	e.stats.FallbackSearches.Add(1)
	found, err := e.fallback.FetchLyrics(e.ctx, providers.Request{
		TrackID:  song.ID,
		Name:     details.Name,
		Artist:   details.PrimaryArtist(),
		Album:    details.Album.Name,
		Duration: song.Duration,
	})
	if err != nil {
		logger.Warnf("%s LRCLIB lookup failed: %v", logcolors.LogFallback, err)
		found = nil
	}
	outcome := lyrics.NotFound
	if improves(primary, found) {
		outcome = lyrics.Found(found)
	} else {
		found = nil
	}

	if err := e.lrclibStore.SetItem(song.ID, outcome); err != nil {
		logger.Warnf("%s Failed to cache LRCLIB lyrics: %v", logcolors.LogCache, err)
	}
	return found
}

// improves reports whether candidate should replace primary: anything beats
// nothing, static lyrics never replace existing ones, and timing is never
// downgraded. Syllable lyrics are final.
func improves(primary, candidate lyrics.Lyrics) bool {
	switch {
	case candidate == nil:
		return false
	case primary == nil:
		return true
	case primary.Type() == lyrics.TypeSyllable || candidate.Type() == lyrics.TypeStatic:
		return false
	}
	return lyrics.Granularity(candidate) >= lyrics.Granularity(primary)
}

func (e *Engine) transform(l lyrics.Lyrics, logger *log.Entry) *lyrics.Transformed {
	t, err := e.transformer.Transform(e.ctx, l)
	if err != nil {
		logger.Warnf("%s Failed to transform lyrics: %v", logcolors.LogLyrics, err)
		return nil
	}
	return t
}

func (e *Engine) storeTransformed(trackID string, t *lyrics.Transformed, logger *log.Entry) {
	if err := e.transformedStore.SetItem(trackID, lyrics.TransformedOutcome{Value: t}); err != nil {
		logger.Warnf("%s Failed to cache transformed lyrics: %v", logcolors.LogCache, err)
	}
}

func (e *Engine) publishLyrics(ep epoch.Epoch, result *lyrics.Transformed, loaded bool) bool {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	if !e.guard.IsCurrent(ep) {
		e.mu.Unlock()
		return false
	}
	e.lyrics, e.lyricsOK = result, loaded
	e.mu.Unlock()

	e.SongLyricsLoaded.Publish(LyricsUpdate{Loaded: loaded, Lyrics: result})
	return true
}

func typeOrNone(l lyrics.Lyrics) string {
	if l == nil {
		return "none"
	}
	return string(l.Type())
}

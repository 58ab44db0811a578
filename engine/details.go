package engine

import (
	"lyrics-sync-go/epoch"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/services/trackinfo"

	log "github.com/sirupsen/logrus"
)

// loadSongDetails resolves details for song. done is closed once the attempt
// has finished, whether or not details were found.
func (e *Engine) loadSongDetails(ep epoch.Epoch, song *Song, done chan struct{}) {
	switch {
	case song == nil || song.Type == SongDJ:
		e.publishDetails(ep, nil, done)
		return
	case song.Type == SongLocal:
		e.publishDetails(ep, trackinfo.LocalDetails(song.Name, song.Album, song.Artists), done)
		return
	case e.details == nil:
		log.Warnf("%s No metadata source configured, details unavailable for %s", logcolors.LogTrackInfo, song.ID)
		close(done)
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		info, err := e.details.Lookup(e.ctx, song.ID, song.InternalID)
		if err != nil {
			log.Warnf("%s %v", logcolors.LogTrackInfo, err)
			close(done)
			return
		}
		e.publishDetails(ep, trackinfo.StreamedDetails(info), done)
	}()
}

func (e *Engine) publishDetails(ep epoch.Epoch, details *trackinfo.Details, done chan struct{}) {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	if !e.guard.IsCurrent(ep) {
		e.mu.Unlock()
		close(done)
		e.stats.StaleDiscards.Add(1)
		log.Debugf("%s Dropping details from epoch %d", logcolors.LogStale, ep)
		return
	}
	e.songDetails, e.detailsOK = details, true
	e.mu.Unlock()

	close(done)
	e.SongDetailsLoaded.Publish(details)
}

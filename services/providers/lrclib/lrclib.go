package lrclib

import (
	"context"
	"errors"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/services/providers"

	log "github.com/sirupsen/logrus"
)

// ProviderName is the identifier for the LRCLIB provider
const ProviderName = "lrclib"

// LrclibProvider implements providers.Provider on top of the search API.
type LrclibProvider struct {
	client *Client
}

func NewProvider(client *Client) *LrclibProvider {
	return &LrclibProvider{client: client}
}

func (p *LrclibProvider) Name() string {
	return ProviderName
}

// FetchLyrics searches LRCLIB with every strategy, ranks the merged results and
// returns the best candidate's lyrics if it passes acceptance. Synced lyrics
// are preferred over plain ones. No results, no acceptable match and
// unparseable lyrics all yield (nil, nil).
func (p *LrclibProvider) FetchLyrics(ctx context.Context, req providers.Request) (lyrics.Lyrics, error) {
	if req.Name == "" {
		return nil, providers.NewProviderError(ProviderName, "track name is required", nil)
	}

	q := Query{
		TrackName:  req.Name,
		ArtistName: req.Artist,
		AlbumName:  req.Album,
		Duration:   req.Duration,
	}

	records := p.client.SearchAll(ctx, q)
	if len(records) == 0 {
		log.Infof("%s No results for %s - %s", logcolors.LogLrclib, q.TrackName, q.ArtistName)
		return nil, nil
	}

	ranked := Rank(q, records)
	best := ranked[0]
	if !best.Accepted() {
		log.Infof("%s No good match. Best was %q by %s (score: %.2f, track: %.2f, artist: %.2f)",
			logcolors.LogLrclib, best.Record.TrackName, best.Record.ArtistName,
			best.Score, best.TrackSimilarity, best.ArtistSimilarity)
		return nil, nil
	}

	log.Infof("%s Selected %q by %s (score: %.2f, %d candidates)",
		logcolors.LogBestMatch, best.Record.TrackName, best.Record.ArtistName, best.Score, len(ranked))

	return lyricsFromRecord(best.Record), nil
}

func lyricsFromRecord(r Record) lyrics.Lyrics {
	if r.HasSyncedLyrics() {
		parsed, err := ParseSynced(*r.SyncedLyrics)
		if err == nil {
			return parsed
		}
		if !errors.Is(err, ErrNoUsableLyrics) {
			log.Warnf("%s Failed to parse synced lyrics for %d: %v", logcolors.LogLRCParser, r.ID, err)
		}
	}
	if r.HasPlainLyrics() {
		if static, err := ParsePlain(*r.PlainLyrics); err == nil {
			return static
		}
	}
	return nil
}

package lrclib

import "net/url"

// Record is one LRCLIB search result.
type Record struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"` // seconds
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  *string `json:"plainLyrics"`
	SyncedLyrics *string `json:"syncedLyrics"`
}

func (r Record) HasSyncedLyrics() bool {
	return r.SyncedLyrics != nil && *r.SyncedLyrics != ""
}

func (r Record) HasPlainLyrics() bool {
	return r.PlainLyrics != nil && *r.PlainLyrics != ""
}

// Query is the track a fallback lookup is for.
type Query struct {
	TrackName  string
	ArtistName string
	AlbumName  string
	Duration   float64 // seconds
}

// Strategies returns the search parameter sets tried for q, from most to
// least specific.
func (q Query) Strategies() []url.Values {
	return []url.Values{
		{"track_name": {q.TrackName}, "artist_name": {q.ArtistName}, "album_name": {q.AlbumName}},
		{"track_name": {q.TrackName}, "artist_name": {q.ArtistName}},
		{"track_name": {q.TrackName}, "album_name": {q.AlbumName}},
		{"track_name": {q.TrackName}},
		{"q": {q.TrackName + " " + q.ArtistName}},
	}
}

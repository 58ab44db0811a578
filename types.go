package main

import (
	"lyrics-sync-go/engine"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/services/trackinfo"
)

type contextKey string

const rateLimitTypeKey contextKey = "rateLimitType"

// PlayingRequest is the body of POST /player/playing.
type PlayingRequest struct {
	IsPlaying bool `json:"isPlaying"`
}

// PositionRequest is the body of POST /player/position. TimestampMs is the
// host's wall clock when PositionMs was read; zero means now. Seek marks a
// jump the clock should apply on the next frame instead of waiting for the
// next sync.
type PositionRequest struct {
	PositionMs  int64 `json:"positionMs"`
	TimestampMs int64 `json:"timestampMs,omitempty"`
	Seek        bool  `json:"seek,omitempty"`
}

// PlayerStateResponse is returned by GET /player/state.
type PlayerStateResponse struct {
	Song            *engine.Song       `json:"song"`
	Details         *trackinfo.Details `json:"details"`
	DetailsLoaded   bool               `json:"detailsLoaded"`
	IsPlaying       bool               `json:"isPlaying"`
	Timestamp       float64            `json:"timestamp"`
	TimestampString string             `json:"timestampString,omitempty"`
	DurationString  string             `json:"durationString,omitempty"`
	LyricsLoaded    bool               `json:"lyricsLoaded"`
	ResyncRequested bool               `json:"resyncRequested"`
}

// LyricsResponse is returned by GET /lyrics. Lyrics is null both while
// loading and when the song has none; Loaded tells them apart.
type LyricsResponse struct {
	Loaded bool                `json:"loaded"`
	Lyrics *lyrics.Transformed `json:"lyrics"`
}

// FallbackSettingResponse is the body of /settings/lrclib-fallback.
type FallbackSettingResponse struct {
	Enabled bool `json:"enabled"`
}

// CacheStatsResponse summarizes the persistent cache.
type CacheStatsResponse struct {
	NumberOfKeys int            `json:"number_of_keys"`
	SizeInKB     int            `json:"size_kb"`
	Namespaces   map[string]int `json:"namespaces"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

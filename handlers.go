package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lyrics-sync-go/engine"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/playback"
	"lyrics-sync-go/services/notifier"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/services/trackinfo"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 64 << 10

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// setSong accepts the player's new item. A body of null (or no body) means
// the player is empty.
func (d *daemon) setSong(w http.ResponseWriter, r *http.Request) {
	var song *engine.Song
	if err := decodeBody(r, &song); err != nil && err != io.EOF {
		Respond(w, r).Error(http.StatusBadRequest, fmt.Sprintf("invalid song: %v", err))
		return
	}
	if song != nil {
		if err := song.Validate(); err != nil {
			Respond(w, r).Error(http.StatusBadRequest, fmt.Sprintf("invalid song: %v", err))
			return
		}
	}

	d.player.Reset()
	d.engine.SetSong(song)
	Respond(w, r).JSON(d.playerState())
}

func (d *daemon) setPlaying(w http.ResponseWriter, r *http.Request) {
	var req PlayingRequest
	if err := decodeBody(r, &req); err != nil {
		Respond(w, r).Error(http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	d.engine.SetPlaying(req.IsPlaying)
	Respond(w, r).NoContent()
}

// setPosition records an announced position for the clock's next sync. A
// seek is also pushed straight to the clock.
func (d *daemon) setPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := decodeBody(r, &req); err != nil {
		Respond(w, r).Error(http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.PositionMs < 0 {
		Respond(w, r).Error(http.StatusBadRequest, "positionMs must not be negative")
		return
	}

	at := time.Now()
	if req.TimestampMs > 0 {
		at = time.UnixMilli(req.TimestampMs)
	}
	position := time.Duration(req.PositionMs) * time.Millisecond
	d.player.Announce(position, at)

	if req.Seek {
		d.engine.PushPosition(playback.SyncedPosition{
			CapturedAt: at,
			Position:   position,
			Anchored:   d.engine.State().IsPlaying,
		})
	}
	Respond(w, r).NoContent()
}

func (d *daemon) getPlayerState(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(d.playerState())
}

func (d *daemon) playerState() PlayerStateResponse {
	state := d.engine.State()
	resp := PlayerStateResponse{
		Song:            state.Song,
		Details:         state.Details,
		DetailsLoaded:   state.DetailsLoaded,
		IsPlaying:       state.IsPlaying,
		Timestamp:       state.Timestamp,
		LyricsLoaded:    state.LyricsLoaded,
		ResyncRequested: d.player.ResyncRequested(),
	}
	// DJ items have neither a duration nor a meaningful timestamp.
	if state.Song != nil && state.Song.Type != engine.SongDJ {
		resp.DurationString = d.engine.DurationString()
		resp.TimestampString = d.engine.TimestampString()
	}
	return resp
}

func lyricsState(resp LyricsResponse) string {
	switch {
	case !resp.Loaded:
		return "loading"
	case resp.Lyrics == nil:
		return "none"
	default:
		return "loaded"
	}
}

func (d *daemon) getLyrics(w http.ResponseWriter, r *http.Request) {
	state := d.engine.State()
	resp := LyricsResponse{Loaded: state.LyricsLoaded, Lyrics: state.Lyrics}
	Respond(w, r).SetLyricsState(lyricsState(resp)).JSON(resp)
}

func (d *daemon) refreshLyrics(w http.ResponseWriter, r *http.Request) {
	if !d.engine.RefreshCurrentLyrics() {
		Respond(w, r).Error(http.StatusConflict, "no streamed song is active")
		return
	}
	Respond(w, r).Status(http.StatusAccepted, map[string]bool{"refreshing": true})
}

func (d *daemon) getFallbackSetting(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(FallbackSettingResponse{Enabled: d.engine.GetLrclibFallbackEnabled()})
}

func (d *daemon) putFallbackSetting(w http.ResponseWriter, r *http.Request) {
	var req FallbackSettingResponse
	if err := decodeBody(r, &req); err != nil {
		Respond(w, r).Error(http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if err := d.engine.SetLrclibFallbackEnabled(req.Enabled); err != nil {
		log.Errorf("%s Failed to save fallback setting: %v", logcolors.LogConfig, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to save setting")
		return
	}
	log.Infof("%s LRCLIB fallback enabled: %v", logcolors.LogConfig, req.Enabled)
	Respond(w, r).JSON(FallbackSettingResponse{Enabled: d.engine.GetLrclibFallbackEnabled()})
}

func (d *daemon) cacheStats() CacheStatsResponse {
	numKeys, sizeKB, namespaces := d.cache.Stats()
	return CacheStatsResponse{NumberOfKeys: numKeys, SizeInKB: sizeKB, Namespaces: namespaces}
}

func (d *daemon) getCacheStats(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(d.cacheStats())
}

func (d *daemon) backupCache(w http.ResponseWriter, r *http.Request) {
	path, err := d.cache.Backup()
	if err != nil {
		log.Errorf("%s Backup failed: %v", logcolors.LogCacheBackup, err)
		notifier.Publish(notifier.CacheBackupFailed(err))
		Respond(w, r).Error(http.StatusInternalServerError, err.Error())
		return
	}
	Respond(w, r).JSON(map[string]string{"backup": path})
}

// clearCacheNamespace drops every entry of one store, e.g. Player_LrclibLyrics.
func (d *daemon) clearCacheNamespace(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	removed, err := d.cache.ClearPrefix(namespace + ":")
	if err != nil {
		log.Errorf("%s Failed to clear %s: %v", logcolors.LogCache, namespace, err)
		Respond(w, r).Error(http.StatusInternalServerError, err.Error())
		return
	}
	log.Infof("%s Cleared %d entries from %s", logcolors.LogCache, removed, namespace)
	notifier.Publish(notifier.CacheCleared(namespace, removed))
	Respond(w, r).JSON(map[string]interface{}{"namespace": namespace, "removed": removed})
}

func (d *daemon) getHealthStatus(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"status":          "ok",
		"uptime":          d.stats.Uptime().Round(time.Second).String(),
		"providers":       providers.GetRegistry().List(),
		"circuit_breaker": d.breaker.State().String(),
	})
}

func (d *daemon) getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := d.stats.Snapshot()
	snapshot["storage"] = d.cacheStats()
	Respond(w, r).JSON(snapshot)
}

func (d *daemon) circuitBreakerStatus() map[string]interface{} {
	return map[string]interface{}{
		"name":             d.breaker.Name(),
		"state":            d.breaker.State().String(),
		"failures":         d.breaker.Failures(),
		"time_until_retry": d.breaker.TimeUntilRetry().Round(time.Second).String(),
	}
}

func (d *daemon) getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(d.circuitBreakerStatus())
}

func (d *daemon) resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	d.breaker.Reset()
	log.Infof("%s Reset by request", logcolors.CircuitBreakerPrefix(d.breaker.Name()))
	Respond(w, r).JSON(d.circuitBreakerStatus())
}

type streamEvent struct {
	name string
	data interface{}
}

// streamEvents pushes engine events to the client as server-sent events,
// starting with the current player state. Slow clients miss events rather
// than stall the engine.
func (d *daemon) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		Respond(w, r).Error(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := make(chan streamEvent, 16)
	send := func(name string, data interface{}) {
		select {
		case events <- streamEvent{name, data}:
		default:
			log.Debugf("%s Dropping %s event for slow client %s", logcolors.LogServer, name, r.RemoteAddr)
		}
	}

	unsubscribe := []func(){
		d.engine.SongChanged.Subscribe(func(s *engine.Song) { send("song", s) }),
		d.engine.SongDetailsLoaded.Subscribe(func(details *trackinfo.Details) { send("details", details) }),
		d.engine.SongLyricsLoaded.Subscribe(func(u engine.LyricsUpdate) {
			send("lyrics", LyricsResponse{Loaded: u.Loaded, Lyrics: u.Lyrics})
		}),
		d.engine.IsPlayingChanged.Subscribe(func(playing bool) { send("playing", PlayingRequest{IsPlaying: playing}) }),
	}
	defer func() {
		for _, u := range unsubscribe {
			u()
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	write := func(ev streamEvent) bool {
		data, err := json.Marshal(ev.data)
		if err != nil {
			log.Warnf("%s Failed to encode %s event: %v", logcolors.LogServer, ev.name, err)
			return true
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !write(streamEvent{"state", d.playerState()}) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if !write(ev) {
				return
			}
		}
	}
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"endpoints": map[string]string{
			"POST /player/song":                 "Set the active song (engine Song JSON, or null when the player is empty)",
			"POST /player/playing":              "Set play state: {\"isPlaying\": bool}",
			"POST /player/position":             "Announce position: {\"positionMs\", \"timestampMs\", \"seek\"}",
			"GET /player/state":                 "Current song, details, clock and resync request",
			"GET /lyrics":                       "Lyrics for the active song",
			"POST /lyrics/refresh":              "Resolve the active song's lyrics again, skipping caches",
			"GET /events":                       "Server-sent song, details, lyrics and playing events",
			"GET|PUT /settings/lrclib-fallback": "Read or change the LRCLIB fallback flag: {\"enabled\": bool}",
			"GET /cache":                        "Cache key counts per namespace",
			"POST /cache/backup":                "Snapshot the cache database",
			"POST /cache/clear/{namespace}":     "Drop every entry in a cache namespace",
			"GET /stats":                        "Engine and daemon counters",
			"GET /circuit-breaker":              "Primary provider circuit breaker state",
			"POST /circuit-breaker/reset":       "Close the primary provider circuit breaker",
			"GET /health":                       "Liveness check",
		},
	})
}

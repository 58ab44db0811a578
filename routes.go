package main

import (
	"net/http"

	"lyrics-sync-go/config"
	"lyrics-sync-go/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// publicPaths never require the API key.
var publicPaths = []string{"/health", "/"}

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router, d *daemon) {
	// Host player feed
	router.HandleFunc("/player/song", d.setSong).Methods(http.MethodPost)
	router.HandleFunc("/player/playing", d.setPlaying).Methods(http.MethodPost)
	router.HandleFunc("/player/position", d.setPosition).Methods(http.MethodPost)
	router.HandleFunc("/player/state", d.getPlayerState).Methods(http.MethodGet)

	// Lyrics for the active song
	router.HandleFunc("/lyrics", d.getLyrics).Methods(http.MethodGet)
	router.HandleFunc("/lyrics/refresh", d.refreshLyrics).Methods(http.MethodPost)
	router.HandleFunc("/events", d.streamEvents).Methods(http.MethodGet)

	// Settings
	router.HandleFunc("/settings/lrclib-fallback", d.getFallbackSetting).Methods(http.MethodGet)
	router.HandleFunc("/settings/lrclib-fallback", d.putFallbackSetting).Methods(http.MethodPut)

	// Cache management
	router.HandleFunc("/cache", d.getCacheStats).Methods(http.MethodGet)
	router.HandleFunc("/cache/backup", d.backupCache).Methods(http.MethodPost)
	router.HandleFunc("/cache/clear/{namespace}", d.clearCacheNamespace).Methods(http.MethodPost)

	// Health and stats endpoints
	router.HandleFunc("/health", d.getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/stats", d.getStats).Methods(http.MethodGet)

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", d.getCircuitBreakerStatus).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breaker/reset", d.resetCircuitBreaker).Methods(http.MethodPost)

	// Help endpoint
	router.HandleFunc("/", helpHandler).Methods(http.MethodGet)
}

// newHandler wraps the router in the middleware chain. Requests pass logging
// and CORS first, then rate limiting and the API key check.
func newHandler(d *daemon, conf config.Config, limiter *middleware.IPRateLimiter) http.Handler {
	router := mux.NewRouter()
	setupRoutes(router, d)

	c := cors.New(cors.Options{
		AllowedOrigins:   conf.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders:   []string{"Content-Type", middleware.APIKeyHeader},
		ExposedHeaders:   []string{"X-Lyrics-State", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Type"},
		AllowCredentials: true,
	})

	apiKey := conf.Configuration.APIKey
	authed := middleware.APIKeyMiddleware(apiKey, conf.FeatureFlags.APIKeyRequired, publicPaths)(router)
	limited := limitMiddleware(authed, limiter, apiKey)
	return middleware.LoggingMiddleware(c.Handler(limited))
}

func newLimiter(conf config.Config) *middleware.IPRateLimiter {
	return middleware.NewIPRateLimiter(
		rate.Limit(conf.Configuration.PlayerRateLimitPerSecond), conf.Configuration.PlayerRateLimitBurst,
		rate.Limit(conf.Configuration.RateLimitPerSecond), conf.Configuration.RateLimitBurst,
	)
}

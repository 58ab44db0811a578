package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"lyrics-sync-go/cache"
	"lyrics-sync-go/circuitbreaker"
	"lyrics-sync-go/config"
	"lyrics-sync-go/engine"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/middleware"
	"lyrics-sync-go/services/notifier"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/services/providers/lrclib"
	"lyrics-sync-go/services/providers/primary"
	"lyrics-sync-go/services/token"
	"lyrics-sync-go/services/trackinfo"
	"lyrics-sync-go/stats"

	log "github.com/sirupsen/logrus"
)

// daemon holds everything the commands share: the cache, the engine and the
// host player feeding it.
type daemon struct {
	cache   *cache.PersistentCache
	engine  *engine.Engine
	player  *hostPlayer
	breaker *circuitbreaker.CircuitBreaker
	stats   *stats.Stats
}

// newDaemon opens the cache and wires providers into a fresh engine. ctx
// bounds every background lookup the engine starts.
func newDaemon(ctx context.Context, conf config.Config) (*daemon, error) {
	pc, err := cache.NewPersistentCache(conf.Configuration.CacheDBPath, conf.Configuration.CacheBackupPath, conf.FeatureFlags.CacheCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	s := stats.Get()
	httpClient := &http.Client{Timeout: conf.HTTPTimeout()}
	tokens := token.FromConfig(conf.Configuration.TokenURL, conf.Configuration.AccessToken, httpClient)

	cooldown := time.Duration(conf.Configuration.CircuitBreakerCooldownSecs) * time.Second
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:      primary.ProviderName,
		Threshold: conf.Configuration.CircuitBreakerThreshold,
		Cooldown:  cooldown,
		// Runs under the breaker's lock: publish only, never call back in.
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			switch {
			case to == circuitbreaker.StateOpen:
				s.CircuitOpens.Add(1)
				notifier.Publish(notifier.CircuitBreakerOpen(name, conf.Configuration.CircuitBreakerThreshold, cooldown))
			case to == circuitbreaker.StateClosed && from != circuitbreaker.StateClosed:
				notifier.Publish(notifier.CircuitBreakerRecovered(name))
			}
		},
	})

	providers.Register(primary.NewProvider(primary.NewClient(conf.Configuration.LyricsServiceURL, tokens, httpClient, breaker)))
	providers.Register(lrclib.NewProvider(lrclib.NewClient(conf.Configuration.LrclibURL,
		lrclib.WithHTTPClient(httpClient),
		lrclib.WithUserAgent(conf.Configuration.LrclibUserAgent),
		lrclib.WithRateLimit(conf.Configuration.LrclibRequestsPerSecond, conf.Configuration.LrclibBurst),
	)))

	primaryProvider, err := providers.Get(primary.ProviderName)
	if err != nil {
		pc.Close()
		return nil, err
	}
	fallbackProvider, err := providers.Get(lrclib.ProviderName)
	if err != nil {
		pc.Close()
		return nil, err
	}

	player := newHostPlayer()
	eng := engine.New(engine.Options{
		Context:            ctx,
		Backend:            pc,
		Primary:            primaryProvider,
		Fallback:           fallbackProvider,
		Details:            trackinfo.NewService(trackinfo.NewClient(conf.Configuration.MetadataURL, tokens, httpClient), pc),
		Playback:           player,
		Stats:              s,
		DetailsWaitTimeout: conf.DetailsWaitTimeout(),
		FrameInterval:      conf.FrameInterval(),
	})

	log.Infof("%s Providers: %s (fallback enabled: %v)", logcolors.LogConfig,
		strings.Join(providers.GetRegistry().List(), ", "), eng.GetLrclibFallbackEnabled())

	return &daemon{cache: pc, engine: eng, player: player, breaker: breaker, stats: s}, nil
}

// setupAlerts builds a notifier for every channel configured and attaches an
// alert handler to the event bus. It returns nil when nothing is configured.
func setupAlerts(conf config.Config) *notifier.AlertHandler {
	nc := conf.Notifier
	var notifiers []notifier.Notifier

	if nc.NtfyTopic != "" {
		notifiers = append(notifiers, &notifier.NtfyNotifier{Topic: nc.NtfyTopic, Server: nc.NtfyServer})
		log.Infof("%s Ntfy notifier enabled (topic: %s)", logcolors.LogNotifier, nc.NtfyTopic)
	}
	if nc.TelegramBotToken != "" && nc.TelegramChatID != "" {
		notifiers = append(notifiers, &notifier.TelegramNotifier{BotToken: nc.TelegramBotToken, ChatID: nc.TelegramChatID})
		log.Infof("%s Telegram notifier enabled", logcolors.LogNotifier)
	}
	if nc.SMTPHost != "" && nc.ToEmail != "" {
		notifiers = append(notifiers, &notifier.EmailNotifier{
			SMTPHost:     nc.SMTPHost,
			SMTPPort:     nc.SMTPPort,
			SMTPUsername: nc.SMTPUsername,
			SMTPPassword: nc.SMTPPassword,
			FromEmail:    nc.FromEmail,
			ToEmail:      nc.ToEmail,
		})
		log.Infof("%s Email notifier enabled (to: %s)", logcolors.LogNotifier, nc.ToEmail)
	}

	if len(notifiers) == 0 {
		log.Debugf("%s No notifiers configured, alerts disabled", logcolors.LogNotifier)
		return nil
	}

	handler := notifier.NewAlertHandler(notifier.AlertConfig{
		Notifiers:        notifiers,
		CooldownDuration: time.Duration(nc.CooldownMins) * time.Minute,
		MinSeverity:      notifier.Severity(strings.ToLower(nc.MinSeverity)),
	})
	handler.Attach(notifier.Bus())
	return handler
}

func (d *daemon) Close() error {
	d.engine.Wait()
	return d.cache.Close()
}

// limitMiddleware applies the per-client limiter. Player updates draw from
// their own tier so a chatty host cannot starve lyrics reads. A valid API key
// bypasses limiting entirely.
func limitMiddleware(next http.Handler, limiter *middleware.IPRateLimiter, apiKey string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(middleware.APIKeyHeader); key != "" && apiKey != "" && key == apiKey {
			w.Header().Set("X-RateLimit-Bypass", "true")
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "bypass")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tier := middleware.TierAPI
		if strings.HasPrefix(r.URL.Path, "/player/") {
			tier = middleware.TierPlayer
		}

		allowed, remaining := limiter.Allow(clientIP(r), tier)
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit(tier)))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Type", tier.String())

		if !allowed {
			stats.Get().RateLimitExceeded.Add(1)
			log.Warnf("%s %s exceeded the %s tier", logcolors.LogRateLimit, r.RemoteAddr, tier)
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		ctx := context.WithValue(r.Context(), rateLimitTypeKey, tier.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// startLimiterCleanup drops idle clients from the limiter until ctx is done.
func startLimiterCleanup(ctx context.Context, limiter *middleware.IPRateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Cleanup(10 * time.Minute); n > 0 {
				log.Debugf("%s Forgot %d idle clients", logcolors.LogRateLimit, n)
			}
		}
	}
}

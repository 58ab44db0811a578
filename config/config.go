package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port string `envconfig:"PORT" default:"8080"`
		// Primary lyrics service
		LyricsServiceURL string `envconfig:"LYRICS_SERVICE_URL" default:"https://beautiful-lyrics.socalifornian.live"`
		AccessToken      string `envconfig:"ACCESS_TOKEN" default:""`
		TokenURL         string `envconfig:"TOKEN_URL" default:""`
		// Track metadata service
		MetadataURL string `envconfig:"METADATA_URL" default:"https://spclient.wg.spotify.com/metadata/4"`
		// LRCLIB fallback
		LrclibURL               string  `envconfig:"LRCLIB_URL" default:"https://lrclib.net"`
		LrclibUserAgent         string  `envconfig:"LRCLIB_USER_AGENT" default:"lyrics-sync-go (https://github.com/surfbryce/beautiful-lyrics)"`
		LrclibRequestsPerSecond float64 `envconfig:"LRCLIB_REQUESTS_PER_SECOND" default:"5"`
		LrclibBurst             int     `envconfig:"LRCLIB_BURST" default:"5"` // one burst covers all search strategies
		HTTPTimeoutSecs         int     `envconfig:"HTTP_TIMEOUT_SECS" default:"10"`
		// Engine
		DetailsWaitTimeoutMs int `envconfig:"DETAILS_WAIT_TIMEOUT_MS" default:"5000"`
		FrameRate            int `envconfig:"FRAME_RATE" default:"30"`
		// Storage
		CacheDBPath     string `envconfig:"CACHE_DB_PATH" default:"./data/cache.db"`
		CacheBackupPath string `envconfig:"CACHE_BACKUP_PATH" default:"./data/backups"`
		StatsDBPath     string `envconfig:"STATS_DB_PATH" default:"./data/stats.db"`
		// Daemon API
		APIKey             string `envconfig:"API_KEY" default:""`
		RateLimitPerSecond int    `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
		RateLimitBurst     int    `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"40"`
		// Position pushes from the host player get their own, larger tier
		PlayerRateLimitPerSecond int    `envconfig:"PLAYER_RATE_LIMIT_PER_SECOND" default:"50"`
		PlayerRateLimitBurst     int    `envconfig:"PLAYER_RATE_LIMIT_BURST_LIMIT" default:"100"`
		CORSAllowedOrigins       string `envconfig:"CORS_ALLOWED_ORIGINS" default:"https://open.spotify.com,https://xpui.app.spotify.com,http://localhost:3000"`
		// Primary provider circuit breaker
		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"`
	}

	Notifier struct {
		NtfyTopic        string `envconfig:"NOTIFIER_NTFY_TOPIC" default:""`
		NtfyServer       string `envconfig:"NOTIFIER_NTFY_SERVER" default:"https://ntfy.sh"`
		TelegramBotToken string `envconfig:"NOTIFIER_TELEGRAM_BOT_TOKEN" default:""`
		TelegramChatID   string `envconfig:"NOTIFIER_TELEGRAM_CHAT_ID" default:""`
		SMTPHost         string `envconfig:"NOTIFIER_SMTP_HOST" default:""`
		SMTPPort         string `envconfig:"NOTIFIER_SMTP_PORT" default:"587"`
		SMTPUsername     string `envconfig:"NOTIFIER_SMTP_USERNAME" default:""`
		SMTPPassword     string `envconfig:"NOTIFIER_SMTP_PASSWORD" default:""`
		FromEmail        string `envconfig:"NOTIFIER_FROM_EMAIL" default:""`
		ToEmail          string `envconfig:"NOTIFIER_TO_EMAIL" default:""`
		CooldownMins     int    `envconfig:"NOTIFIER_COOLDOWN_MINS" default:"15"`
		// critical, warning or info
		MinSeverity string `envconfig:"NOTIFIER_MIN_SEVERITY" default:"warning"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
		APIKeyRequired   bool `envconfig:"FF_API_KEY_REQUIRED" default:"false"`
	}
}

// HTTPTimeout is the timeout shared by every outbound client.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Configuration.HTTPTimeoutSecs) * time.Second
}

func (c Config) DetailsWaitTimeout() time.Duration {
	return time.Duration(c.Configuration.DetailsWaitTimeoutMs) * time.Millisecond
}

// FrameInterval returns the steady-state clock tick. Non-positive frame rates fall back to 30fps.
func (c Config) FrameInterval() time.Duration {
	fps := c.Configuration.FrameRate
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Configuration.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}

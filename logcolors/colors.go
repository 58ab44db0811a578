package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// Cache-related log prefixes
const (
	LogCacheInit     = Blue + "[Cache:Init]" + Reset
	LogCache         = Blue + "[Cache]" + Reset
	LogCacheBackup   = Blue + "[Cache:Backup]" + Reset
	LogCacheLyrics   = Green + "[Cache:Lyrics]" + Reset
	LogCacheNegative = Cyan + "[Cache:Negative]" + Reset
	LogCacheExpired  = Cyan + "[Cache:Expired]" + Reset
)

// Server/Init log prefixes
const (
	LogServer    = Green + "[Server]" + Reset
	LogConfig    = Cyan + "[Config]" + Reset
	LogStats     = Blue + "[Stats]" + Reset
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
	LogNotifier  = Yellow + "[Notifier]" + Reset
)

// Engine log prefixes
const (
	LogEngine    = Green + "[Engine]" + Reset
	LogEpoch     = Yellow + "[Epoch]" + Reset
	LogClock     = Cyan + "[Clock]" + Reset
	LogTrackInfo = Blue + "[TrackInfo]" + Reset
	LogLyrics    = Blue + "[Lyrics]" + Reset
	LogStale     = Yellow + "[Stale]" + Reset
)

// Provider log prefixes
const (
	LogPrimary     = Purple + "[Primary]" + Reset
	LogLrclib      = Cyan + "[LRCLIB]" + Reset
	LogFallback    = Cyan + "[Fallback]" + Reset
	LogBestMatch   = Green + "[Best Match]" + Reset
	LogTrackScore  = Cyan + "[Track Score]" + Reset
	LogLRCParser   = Cyan + "[LRC Parser]" + Reset
	LogBearerToken = Cyan + "[Bearer Token]" + Reset
	LogWarning     = Red + "[Warning]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// Provider returns a colored prefix for a named provider.
func Provider(name string) string {
	return Blue + "[" + name + "]" + Reset
}

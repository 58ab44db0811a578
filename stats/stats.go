package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds engine and daemon counters. All fields are safe for concurrent
// use.
type Stats struct {
	StartTime time.Time

	// Resolution pipeline
	Resolutions     atomic.Int64
	ForcedRefreshes atomic.Int64
	LyricsPublished atomic.Int64
	NoLyrics        atomic.Int64
	StaleDiscards   atomic.Int64

	// Cache performance
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
	NegativeCacheHits atomic.Int64

	// Providers
	PrimaryFetches   atomic.Int64
	PrimaryFailures  atomic.Int64
	FallbackSearches atomic.Int64
	FallbackUsed     atomic.Int64
	CircuitOpens     atomic.Int64

	// Daemon
	TotalRequests     atomic.Int64
	RateLimitExceeded atomic.Int64
	Status2xx         atomic.Int64
	Status4xx         atomic.Int64
	Status5xx         atomic.Int64

	// Resolution time tracking (microseconds)
	totalResolveTime atomic.Int64
	resolveCount     atomic.Int64
	minResolveTime   atomic.Int64
	maxResolveTime   atomic.Int64
}

const noMinimum = int64(^uint64(0) >> 1)

// New returns a zeroed Stats starting now.
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResolveTime.Store(noMinimum)
	return s
}

var global = New()

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordCacheLookup records the outcome of a cache read. A negative hit is
// also a hit.
func (s *Stats) RecordCacheLookup(hit, negative bool) {
	switch {
	case !hit:
		s.CacheMisses.Add(1)
	case negative:
		s.CacheHits.Add(1)
		s.NegativeCacheHits.Add(1)
	default:
		s.CacheHits.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResolveTime records how long a resolution took end to end.
func (s *Stats) RecordResolveTime(duration time.Duration) {
	us := duration.Microseconds()

	s.totalResolveTime.Add(us)
	s.resolveCount.Add(1)

	for {
		current := s.minResolveTime.Load()
		if us >= current || s.minResolveTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResolveTime.Load()
		if us <= current || s.maxResolveTime.CompareAndSwap(current, us) {
			break
		}
	}
}

// Uptime returns the time since StartTime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load()
	total := hits + s.CacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (s *Stats) AvgResolveTime() time.Duration {
	count := s.resolveCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResolveTime.Load()/count) * time.Microsecond
}

func (s *Stats) MinResolveTime() time.Duration {
	min := s.minResolveTime.Load()
	if min == noMinimum {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

func (s *Stats) MaxResolveTime() time.Duration {
	return time.Duration(s.maxResolveTime.Load()) * time.Microsecond
}

// Snapshot returns a point-in-time view for the stats endpoint.
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"resolutions": map[string]interface{}{
			"total":            s.Resolutions.Load(),
			"forced":           s.ForcedRefreshes.Load(),
			"published":        s.LyricsPublished.Load(),
			"no_lyrics":        s.NoLyrics.Load(),
			"stale_discards":   s.StaleDiscards.Load(),
			"avg_resolve_time": s.AvgResolveTime().String(),
			"min_resolve_time": s.MinResolveTime().String(),
			"max_resolve_time": s.MaxResolveTime().String(),
		},
		"cache": map[string]interface{}{
			"hits":          s.CacheHits.Load(),
			"misses":        s.CacheMisses.Load(),
			"negative_hits": s.NegativeCacheHits.Load(),
			"hit_rate":      s.CacheHitRate(),
		},
		"providers": map[string]interface{}{
			"primary_fetches":   s.PrimaryFetches.Load(),
			"primary_failures":  s.PrimaryFailures.Load(),
			"fallback_searches": s.FallbackSearches.Load(),
			"fallback_used":     s.FallbackUsed.Load(),
			"circuit_opens":     s.CircuitOpens.Load(),
		},
		"requests": map[string]interface{}{
			"total":               s.TotalRequests.Load(),
			"rate_limit_exceeded": s.RateLimitExceeded.Load(),
			"2xx":                 s.Status2xx.Load(),
			"4xx":                 s.Status4xx.Load(),
			"5xx":                 s.Status5xx.Load(),
		},
	}
}

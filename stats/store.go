package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "engine_stats"
)

// Store persists counters across restarts in a dedicated BoltDB file.
type Store struct {
	db       *bolt.DB
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// PersistedStats is the on-disk form of the cumulative counters.
type PersistedStats struct {
	Resolutions       int64 `json:"resolutions"`
	ForcedRefreshes   int64 `json:"forced_refreshes"`
	LyricsPublished   int64 `json:"lyrics_published"`
	NoLyrics          int64 `json:"no_lyrics"`
	StaleDiscards     int64 `json:"stale_discards"`
	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	NegativeCacheHits int64 `json:"negative_cache_hits"`
	PrimaryFetches    int64 `json:"primary_fetches"`
	PrimaryFailures   int64 `json:"primary_failures"`
	FallbackSearches  int64 `json:"fallback_searches"`
	FallbackUsed      int64 `json:"fallback_used"`
	CircuitOpens      int64 `json:"circuit_opens"`
	TotalRequests     int64 `json:"total_requests"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`
	Status2xx         int64 `json:"status_2xx"`
	Status4xx         int64 `json:"status_4xx"`
	Status5xx         int64 `json:"status_5xx"`

	TotalResolveTime int64 `json:"total_resolve_time"`
	ResolveCount     int64 `json:"resolve_count"`
	MinResolveTime   int64 `json:"min_resolve_time"`
	MaxResolveTime   int64 `json:"max_resolve_time"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore opens (or creates) the stats database at dbPath for s.
func NewStore(dbPath string, s *Stats) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{db: db, stats: s, stopChan: make(chan struct{})}, nil
}

// Load applies persisted counters to the store's Stats.
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var p PersistedStats
	err := st.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(statsBucketName)).Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	s := st.stats
	s.Resolutions.Store(p.Resolutions)
	s.ForcedRefreshes.Store(p.ForcedRefreshes)
	s.LyricsPublished.Store(p.LyricsPublished)
	s.NoLyrics.Store(p.NoLyrics)
	s.StaleDiscards.Store(p.StaleDiscards)
	s.CacheHits.Store(p.CacheHits)
	s.CacheMisses.Store(p.CacheMisses)
	s.NegativeCacheHits.Store(p.NegativeCacheHits)
	s.PrimaryFetches.Store(p.PrimaryFetches)
	s.PrimaryFailures.Store(p.PrimaryFailures)
	s.FallbackSearches.Store(p.FallbackSearches)
	s.FallbackUsed.Store(p.FallbackUsed)
	s.CircuitOpens.Store(p.CircuitOpens)
	s.TotalRequests.Store(p.TotalRequests)
	s.RateLimitExceeded.Store(p.RateLimitExceeded)
	s.Status2xx.Store(p.Status2xx)
	s.Status4xx.Store(p.Status4xx)
	s.Status5xx.Store(p.Status5xx)
	s.totalResolveTime.Store(p.TotalResolveTime)
	s.resolveCount.Store(p.ResolveCount)

	if p.MinResolveTime > 0 && p.MinResolveTime < noMinimum {
		s.minResolveTime.Store(p.MinResolveTime)
	}
	if p.MaxResolveTime > 0 {
		s.maxResolveTime.Store(p.MaxResolveTime)
	}
	if !p.FirstStarted.IsZero() {
		s.StartTime = p.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (resolutions: %d, first started: %s)",
		logcolors.LogStats, p.Resolutions, p.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save persists the current counters.
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.stats
	p := PersistedStats{
		Resolutions:       s.Resolutions.Load(),
		ForcedRefreshes:   s.ForcedRefreshes.Load(),
		LyricsPublished:   s.LyricsPublished.Load(),
		NoLyrics:          s.NoLyrics.Load(),
		StaleDiscards:     s.StaleDiscards.Load(),
		CacheHits:         s.CacheHits.Load(),
		CacheMisses:       s.CacheMisses.Load(),
		NegativeCacheHits: s.NegativeCacheHits.Load(),
		PrimaryFetches:    s.PrimaryFetches.Load(),
		PrimaryFailures:   s.PrimaryFailures.Load(),
		FallbackSearches:  s.FallbackSearches.Load(),
		FallbackUsed:      s.FallbackUsed.Load(),
		CircuitOpens:      s.CircuitOpens.Load(),
		TotalRequests:     s.TotalRequests.Load(),
		RateLimitExceeded: s.RateLimitExceeded.Load(),
		Status2xx:         s.Status2xx.Load(),
		Status4xx:         s.Status4xx.Load(),
		Status5xx:         s.Status5xx.Load(),
		TotalResolveTime:  s.totalResolveTime.Load(),
		ResolveCount:      s.resolveCount.Load(),
		MinResolveTime:    s.minResolveTime.Load(),
		MaxResolveTime:    s.maxResolveTime.Load(),
		LastSaved:         time.Now(),
		FirstStarted:      s.StartTime,
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = st.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(statsBucketName)).Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave begins periodic saving of stats
func (st *Store) StartAutoSave(interval time.Duration) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-st.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close saves stats and closes the database
func (st *Store) Close() error {
	close(st.stopChan)
	st.wg.Wait()

	if err := st.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}
	return st.db.Close()
}

package stats

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRecordCacheLookup(t *testing.T) {
	s := New()
	s.RecordCacheLookup(true, false)
	s.RecordCacheLookup(true, true)
	s.RecordCacheLookup(false, false)
	s.RecordCacheLookup(false, false)

	if s.CacheHits.Load() != 2 || s.CacheMisses.Load() != 2 || s.NegativeCacheHits.Load() != 1 {
		t.Errorf("Unexpected counters: hits=%d misses=%d negative=%d",
			s.CacheHits.Load(), s.CacheMisses.Load(), s.NegativeCacheHits.Load())
	}
	if s.CacheHitRate() != 50 {
		t.Errorf("Expected 50%% hit rate, got %v", s.CacheHitRate())
	}
}

func TestRecordStatusCode(t *testing.T) {
	s := New()
	for _, code := range []int{200, 204, 404, 429, 500, 302} {
		s.RecordStatusCode(code)
	}
	if s.Status2xx.Load() != 2 || s.Status4xx.Load() != 2 || s.Status5xx.Load() != 1 {
		t.Errorf("Unexpected status counters: %d/%d/%d", s.Status2xx.Load(), s.Status4xx.Load(), s.Status5xx.Load())
	}
}

func TestResolveTimes(t *testing.T) {
	s := New()
	if s.MinResolveTime() != 0 || s.AvgResolveTime() != 0 {
		t.Error("Expected zero times before any resolution")
	}

	s.RecordResolveTime(10 * time.Millisecond)
	s.RecordResolveTime(30 * time.Millisecond)

	if s.MinResolveTime() != 10*time.Millisecond {
		t.Errorf("Expected min 10ms, got %v", s.MinResolveTime())
	}
	if s.MaxResolveTime() != 30*time.Millisecond {
		t.Errorf("Expected max 30ms, got %v", s.MaxResolveTime())
	}
	if s.AvgResolveTime() != 20*time.Millisecond {
		t.Errorf("Expected avg 20ms, got %v", s.AvgResolveTime())
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")

	s := New()
	s.Resolutions.Add(7)
	s.FallbackUsed.Add(2)
	s.RecordResolveTime(5 * time.Millisecond)

	store, err := NewStore(path, s)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	restored := New()
	store, err = NewStore(path, restored)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()
	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if restored.Resolutions.Load() != 7 || restored.FallbackUsed.Load() != 2 {
		t.Errorf("Counters not restored: %d, %d", restored.Resolutions.Load(), restored.FallbackUsed.Load())
	}
	if restored.MinResolveTime() != 5*time.Millisecond {
		t.Errorf("Expected min resolve time restored, got %v", restored.MinResolveTime())
	}
	if !restored.StartTime.Equal(s.StartTime) {
		t.Errorf("Expected first start time preserved")
	}
}

func TestSnapshot_Sections(t *testing.T) {
	snap := New().Snapshot()
	for _, section := range []string{"server", "resolutions", "cache", "providers", "requests"} {
		if _, ok := snap[section]; !ok {
			t.Errorf("Missing section %q", section)
		}
	}
}

package cache

import (
	"encoding/json"
	"time"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// Backend is the key/value substrate a Store persists into.
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Unit is the calendar unit of an Expiration.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
	Days
	Weeks
	Months
	Years
)

// Expiration is a relative lifetime such as "1 month" or "2 weeks".
// A zero Count never expires.
type Expiration struct {
	Count int
	Unit  Unit
}

// From returns the instant the lifetime ends when started at t.
// Months and years use calendar arithmetic.
func (e Expiration) From(t time.Time) time.Time {
	switch e.Unit {
	case Seconds:
		return t.Add(time.Duration(e.Count) * time.Second)
	case Minutes:
		return t.Add(time.Duration(e.Count) * time.Minute)
	case Hours:
		return t.Add(time.Duration(e.Count) * time.Hour)
	case Days:
		return t.AddDate(0, 0, e.Count)
	case Weeks:
		return t.AddDate(0, 0, 7*e.Count)
	case Months:
		return t.AddDate(0, e.Count, 0)
	case Years:
		return t.AddDate(e.Count, 0, 0)
	}
	panic("cache: unknown expiration unit")
}

// entry is what a Store writes under namespace:key.
type entry struct {
	Value     json.RawMessage `json:"value"`
	Version   int             `json:"version"`
	ExpiresAt int64           `json:"expiresAt,omitempty"` // unix milliseconds, 0 = never
}

type storeOptions struct {
	now func() time.Time
}

// Option configures a Store or InstantStore.
type Option func(*storeOptions)

// WithClock overrides the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// Store is an expiring, schema-versioned key/value store for values of type T.
type Store[T any] struct {
	backend    Backend
	namespace  string
	version    int
	expiration Expiration
	now        func() time.Time
}

func NewStore[T any](backend Backend, namespace string, version int, expiration Expiration, opts ...Option) *Store[T] {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		backend:    backend,
		namespace:  namespace,
		version:    version,
		expiration: expiration,
		now:        o.now,
	}
}

func (s *Store[T]) key(key string) string {
	return s.namespace + ":" + key
}

// GetItem returns the live value stored under key. Any backend or decoding failure,
// a schema version mismatch, or an expired entry is reported as a miss. Expired and
// outdated entries are deleted on read.
func (s *Store[T]) GetItem(key string) (T, bool) {
	var zero T
	fullKey := s.key(key)

	raw, found, err := s.backend.Get(fullKey)
	if err != nil {
		log.Warnf("%s Read failed for %s: %v", logcolors.LogCache, fullKey, err)
		return zero, false
	}
	if !found {
		return zero, false
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		log.Warnf("%s Corrupt entry %s: %v", logcolors.LogCache, fullKey, err)
		s.evict(fullKey)
		return zero, false
	}

	if e.Version != s.version {
		log.Debugf("%s %s has version %d, want %d", logcolors.LogCacheExpired, fullKey, e.Version, s.version)
		s.evict(fullKey)
		return zero, false
	}
	if e.ExpiresAt != 0 && s.now().UnixMilli() >= e.ExpiresAt {
		log.Debugf("%s %s expired", logcolors.LogCacheExpired, fullKey)
		s.evict(fullKey)
		return zero, false
	}

	var value T
	if err := json.Unmarshal(e.Value, &value); err != nil {
		log.Warnf("%s Undecodable value for %s: %v", logcolors.LogCache, fullKey, err)
		s.evict(fullKey)
		return zero, false
	}
	return value, true
}

// SetItem stores value under key with expiresAt = now + expiration.
func (s *Store[T]) SetItem(key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	e := entry{Value: data, Version: s.version}
	if s.expiration.Count > 0 {
		e.ExpiresAt = s.expiration.From(s.now()).UnixMilli()
	}

	encoded, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.backend.Set(s.key(key), string(encoded))
}

func (s *Store[T]) evict(fullKey string) {
	if err := s.backend.Delete(fullKey); err != nil {
		log.Debugf("%s Failed to evict %s: %v", logcolors.LogCache, fullKey, err)
	}
}

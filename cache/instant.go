package cache

import (
	"encoding/json"
	"sync"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// InstantStore holds a single never-expiring settings record. Reads are served
// from memory after the first load.
type InstantStore[T any] struct {
	backend  Backend
	key      string
	version  int
	defaults T

	mu     sync.RWMutex
	loaded bool
	items  T
}

func NewInstantStore[T any](backend Backend, key string, version int, defaults T) *InstantStore[T] {
	return &InstantStore[T]{
		backend:  backend,
		key:      key,
		version:  version,
		defaults: defaults,
	}
}

// Items returns the stored record, or the defaults when nothing valid is stored.
func (s *InstantStore[T]) Items() T {
	s.mu.RLock()
	if s.loaded {
		items := s.items
		s.mu.RUnlock()
		return items
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.items = s.read()
		s.loaded = true
	}
	return s.items
}

func (s *InstantStore[T]) read() T {
	raw, found, err := s.backend.Get(s.key)
	if err != nil {
		log.Warnf("%s Read failed for %s: %v", logcolors.LogCache, s.key, err)
		return s.defaults
	}
	if !found {
		return s.defaults
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Version != s.version {
		return s.defaults
	}
	var items T
	if err := json.Unmarshal(e.Value, &items); err != nil {
		return s.defaults
	}
	return items
}

// Save replaces the stored record.
func (s *InstantStore[T]) Save(items T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(entry{Value: data, Version: s.version})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Set(s.key, string(encoded)); err != nil {
		return err
	}
	s.items = items
	s.loaded = true
	return nil
}

package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lyrics-sync-go/lyrics"
)

// Provider defines the interface that all lyrics providers must implement
type Provider interface {
	// Name returns the provider's identifier (e.g., "primary", "lrclib")
	Name() string

	// FetchLyrics resolves lyrics for the request. A nil result with a nil
	// error means the provider answered definitively that it has no lyrics.
	FetchLyrics(ctx context.Context, req Request) (lyrics.Lyrics, error)
}

// Registry holds all registered providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

var (
	globalRegistry *Registry
	registryOnce   sync.Once
)

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// GetRegistry returns the global provider registry
func GetRegistry() *Registry {
	registryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// List returns all registered provider names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register is a convenience function to register a provider in the global registry
func Register(p Provider) {
	GetRegistry().Register(p)
}

// Get is a convenience function to get a provider from the global registry
func Get(name string) (Provider, error) {
	return GetRegistry().Get(name)
}

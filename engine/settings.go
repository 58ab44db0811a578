package engine

import (
	"lyrics-sync-go/cache"
	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	fallbackSettingsKey     = "BeautifulLyrics/LrclibFallback"
	fallbackSettingsVersion = 1
)

// FallbackSettings controls the LRCLIB fallback.
type FallbackSettings struct {
	Enabled bool `json:"Enabled"`
}

func newFallbackSettingsStore(backend cache.Backend) *cache.InstantStore[FallbackSettings] {
	return cache.NewInstantStore(backend, fallbackSettingsKey, fallbackSettingsVersion, FallbackSettings{Enabled: true})
}

func (e *Engine) GetLrclibFallbackEnabled() bool {
	return e.fallbackSettings.Items().Enabled
}

// SetLrclibFallbackEnabled persists the flag. It applies to resolutions that
// start afterwards.
func (e *Engine) SetLrclibFallbackEnabled(enabled bool) error {
	if err := e.fallbackSettings.Save(FallbackSettings{Enabled: enabled}); err != nil {
		return err
	}
	log.Infof("%s LRCLIB fallback enabled: %v", logcolors.LogFallback, enabled)
	return nil
}

package engine

import (
	"fmt"
	"math"

	"lyrics-sync-go/services/trackinfo"
)

// SongType distinguishes what the player is currently on.
type SongType string

const (
	SongStreamed SongType = "Streamed"
	SongLocal    SongType = "Local"
	SongDJ       SongType = "DJ"
)

// Song is the active player item. Streamed tracks carry catalog ids, local
// files carry the metadata the player reports for them, and DJ narration
// carries only its action text.
type Song struct {
	Type       SongType `json:"type"`
	URI        string   `json:"uri"`
	ID         string   `json:"id,omitempty"`
	InternalID string   `json:"internalId,omitempty"`
	Duration   float64  `json:"duration,omitempty"` // seconds

	// DJ only
	Action string `json:"action,omitempty"`

	// Local only
	Name    string   `json:"name,omitempty"`
	Album   string   `json:"album,omitempty"`
	Artists []string `json:"artists,omitempty"`
}

// NewStreamedSong builds a streamed song from its base62 id.
func NewStreamedSong(id string, duration float64) (*Song, error) {
	internalID, err := trackinfo.IDToHex(id)
	if err != nil {
		return nil, err
	}
	return &Song{
		Type:       SongStreamed,
		URI:        "spotify:track:" + id,
		ID:         id,
		InternalID: internalID,
		Duration:   duration,
	}, nil
}

// Validate checks that the fields a song type depends on are present and
// fills InternalID for streamed songs that only carry an ID.
func (s *Song) Validate() error {
	switch s.Type {
	case SongStreamed:
		if s.ID == "" {
			return fmt.Errorf("streamed song requires an id")
		}
		if s.InternalID == "" {
			internalID, err := trackinfo.IDToHex(s.ID)
			if err != nil {
				return err
			}
			s.InternalID = internalID
		}
		if s.URI == "" {
			s.URI = "spotify:track:" + s.ID
		}
	case SongLocal, SongDJ:
	default:
		return fmt.Errorf("unknown song type %q", s.Type)
	}
	if s.Duration < 0 {
		return fmt.Errorf("negative duration %v", s.Duration)
	}
	return nil
}

// formatClock renders position as m:ss, or mm:ss once the track runs ten
// minutes or longer.
func formatClock(position, duration float64) string {
	minutes := int(math.Floor(position / 60))
	seconds := int(math.Floor(math.Mod(position, 60)))
	if duration >= 600 {
		return fmt.Sprintf("%02d:%02d", minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

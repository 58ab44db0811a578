package trackinfo

// TrackInformation is the subset of the metadata service's track document the
// player relies on. It is cached verbatim, so changing its shape requires a
// StoreVersion bump.
type TrackInformation struct {
	Name       string       `json:"name"`
	ExternalID []ExternalID `json:"external_id"`
	Artist     []Artist     `json:"artist"`
	Album      Album        `json:"album"`
	Duration   int64        `json:"duration,omitempty"` // milliseconds
}

type ExternalID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type Artist struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type Album struct {
	GID    string      `json:"gid"`
	Name   string      `json:"name"`
	Artist []Artist    `json:"artist"`
	Date   ReleaseDate `json:"date"`
}

type ReleaseDate struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// ISRC returns the track's ISRC code, or "" when the document has none.
func (t *TrackInformation) ISRC() string {
	for _, id := range t.ExternalID {
		if id.Type == "isrc" {
			return id.ID
		}
	}
	return ""
}

package trackinfo

import "regexp"

var nameFilters = []*regexp.Regexp{
	regexp.MustCompile(`\s*(?:\-|\/)\s*(?:(?:Stereo|Mono)\s*)?Remastered(?:\s*\d+)?`),
	regexp.MustCompile(`\s*\-\s*(?:Stereo|Mono)(?:\s*Version|\s*Mix)?`),
	regexp.MustCompile(`\s*\(\s*(?:Stereo|Mono)(?:\s*Mix)?\)?`),
}

// FilterName strips release annotations ("- Remastered 2011", "- Mono
// Version", "(Stereo Mix)") that only get in the way of lyric searches.
// Each filter removes its first match only.
func FilterName(name string) string {
	for _, filter := range nameFilters {
		if loc := filter.FindStringIndex(name); loc != nil {
			name = name[:loc[0]] + name[loc[1]:]
		}
	}
	return name
}

type ArtistDetails struct {
	InternalID string `json:"internalId,omitempty"`
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
}

type AlbumDetails struct {
	InternalID  string          `json:"internalId,omitempty"`
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Artists     []ArtistDetails `json:"artists,omitempty"`
	ReleaseDate *ReleaseDate    `json:"releaseDate,omitempty"`
}

// Details describes the active song. Local files carry only what the player
// reports; streamed tracks are filled from TrackInformation.
type Details struct {
	IsLocal bool            `json:"isLocal"`
	ISRC    string          `json:"isrc,omitempty"`
	Name    string          `json:"name"`
	Artists []ArtistDetails `json:"artists"`
	Album   AlbumDetails    `json:"album"`

	Raw *TrackInformation `json:"-"`
}

// PrimaryArtist returns the first artist's name, or "".
func (d *Details) PrimaryArtist() string {
	if len(d.Artists) == 0 {
		return ""
	}
	return d.Artists[0].Name
}

// LocalDetails builds details for a local file from the player's own view of it.
func LocalDetails(name, album string, artists []string) *Details {
	d := &Details{IsLocal: true, Name: name, Album: AlbumDetails{Name: album}}
	for _, a := range artists {
		d.Artists = append(d.Artists, ArtistDetails{Name: a})
	}
	return d
}

// StreamedDetails builds details from a metadata document.
func StreamedDetails(info *TrackInformation) *Details {
	date := info.Album.Date
	return &Details{
		ISRC:    info.ISRC(),
		Name:    FilterName(info.Name),
		Artists: artistDetails(info.Artist),
		Album: AlbumDetails{
			InternalID:  info.Album.GID,
			ID:          idOrEmpty(info.Album.GID),
			Name:        info.Album.Name,
			Artists:     artistDetails(info.Album.Artist),
			ReleaseDate: &date,
		},
		Raw: info,
	}
}

func artistDetails(artists []Artist) []ArtistDetails {
	out := make([]ArtistDetails, 0, len(artists))
	for _, a := range artists {
		out = append(out, ArtistDetails{InternalID: a.GID, ID: idOrEmpty(a.GID), Name: a.Name})
	}
	return out
}

func idOrEmpty(gid string) string {
	id, err := HexToID(gid)
	if err != nil {
		return ""
	}
	return id
}

// Package lyrics defines the structured lyrics model shared by every provider:
// a closed set of timing granularities (static, line-synced, syllable-synced).
package lyrics

import "fmt"

// Type is the JSON discriminator of a Lyrics value.
type Type string

const (
	TypeStatic   Type = "Static"
	TypeLine     Type = "Line"
	TypeSyllable Type = "Syllable"
)

// Lyrics is implemented by *Static, *LineSynced and *SyllableSynced only.
type Lyrics interface {
	Type() Type
	sealed()
}

// TextMetadata is one displayable piece of text.
type TextMetadata struct {
	Text          string `json:"Text"`
	RomanizedText string `json:"RomanizedText,omitempty"`
}

// TimeMetadata is a span in seconds from the start of the track.
type TimeMetadata struct {
	StartTime float64 `json:"StartTime"`
	EndTime   float64 `json:"EndTime"`
}

// Static lyrics carry no timing.
type Static struct {
	Lines []TextMetadata `json:"Lines"`
}

// ContentType discriminates the entries of a synced lyrics body.
type ContentType string

const (
	ContentVocal     ContentType = "Vocal"
	ContentInterlude ContentType = "Interlude"
)

// LineContent is either a vocal line (Text set) or an interlude.
type LineContent struct {
	Type ContentType `json:"Type"`
	TimeMetadata
	Text            string `json:"Text,omitempty"`
	RomanizedText   string `json:"RomanizedText,omitempty"`
	OppositeAligned bool   `json:"OppositeAligned,omitempty"`
}

// LineSynced lyrics time each line.
type LineSynced struct {
	TimeMetadata
	Content []LineContent `json:"Content"`
}

// Syllable is one timed fragment of a word.
type Syllable struct {
	TimeMetadata
	Text          string `json:"Text"`
	RomanizedText string `json:"RomanizedText,omitempty"`
	IsPartOfWord  bool   `json:"IsPartOfWord"`
}

// SyllableVocal is a timed run of syllables.
type SyllableVocal struct {
	TimeMetadata
	Syllables []Syllable `json:"Syllables"`
}

// SyllableContent is either a vocal set (Lead set) or an interlude (TimeMetadata set).
type SyllableContent struct {
	Type ContentType `json:"Type"`
	TimeMetadata
	OppositeAligned bool            `json:"OppositeAligned,omitempty"`
	Lead            *SyllableVocal  `json:"Lead,omitempty"`
	Background      []SyllableVocal `json:"Background,omitempty"`
}

// SyllableSynced lyrics time each syllable.
type SyllableSynced struct {
	TimeMetadata
	Content []SyllableContent `json:"Content"`
}

func (*Static) Type() Type         { return TypeStatic }
func (*LineSynced) Type() Type     { return TypeLine }
func (*SyllableSynced) Type() Type { return TypeSyllable }

func (*Static) sealed()         {}
func (*LineSynced) sealed()     {}
func (*SyllableSynced) sealed() {}

// Granularity orders timing fidelity: Static < Line < Syllable.
func Granularity(l Lyrics) int {
	switch l.(type) {
	case *Static:
		return 1
	case *LineSynced:
		return 2
	case *SyllableSynced:
		return 3
	}
	panic(fmt.Sprintf("lyrics: unknown lyrics type %T", l))
}

// Text flattens any lyrics value into its display lines.
func Text(l Lyrics) []string {
	var out []string
	switch v := l.(type) {
	case *Static:
		for _, line := range v.Lines {
			out = append(out, line.Text)
		}
	case *LineSynced:
		for _, c := range v.Content {
			if c.Type == ContentVocal {
				out = append(out, c.Text)
			}
		}
	case *SyllableSynced:
		for _, c := range v.Content {
			if c.Type != ContentVocal || c.Lead == nil {
				continue
			}
			line := ""
			for i, s := range c.Lead.Syllables {
				if i > 0 && !c.Lead.Syllables[i-1].IsPartOfWord {
					line += " "
				}
				line += s.Text
			}
			out = append(out, line)
		}
	default:
		panic(fmt.Sprintf("lyrics: unknown lyrics type %T", l))
	}
	return out
}

package lyrics

import (
	"context"
	"encoding/json"
	"strings"
)

// Alignment is the natural reading direction of a lyrics body.
type Alignment string

const (
	AlignLeft  Alignment = "Left"
	AlignRight Alignment = "Right"
)

// Transformed is the display-ready form of a lyrics result.
type Transformed struct {
	NaturalAlignment  Alignment `json:"NaturalAlignment"`
	Language          string    `json:"Language"`
	RomanizedLanguage string    `json:"RomanizedLanguage,omitempty"`
	Lyrics            Lyrics    `json:"-"`
}

func (t Transformed) MarshalJSON() ([]byte, error) {
	type plain Transformed
	return json.Marshal(struct {
		plain
		Lyrics Lyrics `json:"Lyrics"`
	}{plain(t), t.Lyrics})
}

func (t *Transformed) UnmarshalJSON(data []byte) error {
	type plain Transformed
	var aux struct {
		plain
		Lyrics json.RawMessage `json:"Lyrics"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l, err := Decode(aux.Lyrics)
	if err != nil {
		return err
	}
	*t = Transformed(aux.plain)
	t.Lyrics = l
	return nil
}

// TransformedOutcome is a cached transform result; a nil value encodes as false.
type TransformedOutcome struct {
	Value *Transformed
}

func (o TransformedOutcome) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("false"), nil
	}
	return json.Marshal(o.Value)
}

func (o *TransformedOutcome) UnmarshalJSON(data []byte) error {
	if s := strings.TrimSpace(string(data)); s == "false" || s == "null" {
		o.Value = nil
		return nil
	}
	var t Transformed
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// Transformer turns raw lyrics into their display form. Implementations may
// romanize text; they must not change timing.
type Transformer interface {
	Transform(ctx context.Context, l Lyrics) (*Transformed, error)
}

// PassthroughTransformer detects language and reading direction and otherwise
// leaves the lyrics untouched.
type PassthroughTransformer struct{}

func (PassthroughTransformer) Transform(_ context.Context, l Lyrics) (*Transformed, error) {
	lang := DetectLanguage(strings.Join(Text(l), "\n"))
	alignment := AlignLeft
	if IsRTLLanguage(lang) {
		alignment = AlignRight
	}
	return &Transformed{
		NaturalAlignment: alignment,
		Language:         lang,
		Lyrics:           l,
	}, nil
}

package lyrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownType = errors.New("unknown lyrics type")

// Each concrete type writes its own discriminator so a bare value can be stored.

func (s *Static) MarshalJSON() ([]byte, error) {
	type plain Static
	return json.Marshal(struct {
		Type Type `json:"Type"`
		*plain
	}{TypeStatic, (*plain)(s)})
}

func (l *LineSynced) MarshalJSON() ([]byte, error) {
	type plain LineSynced
	return json.Marshal(struct {
		Type Type `json:"Type"`
		*plain
	}{TypeLine, (*plain)(l)})
}

func (l *SyllableSynced) MarshalJSON() ([]byte, error) {
	type plain SyllableSynced
	return json.Marshal(struct {
		Type Type `json:"Type"`
		*plain
	}{TypeSyllable, (*plain)(l)})
}

// Decode parses a provider lyrics document, dispatching on its "Type" field.
func Decode(data []byte) (Lyrics, error) {
	var head struct {
		Type Type `json:"Type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode lyrics: %w", err)
	}

	var target Lyrics
	switch head.Type {
	case TypeStatic:
		target = &Static{}
	case TypeLine:
		target = &LineSynced{}
	case TypeSyllable:
		target = &SyllableSynced{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s lyrics: %w", head.Type, err)
	}
	return target, nil
}

// Outcome is a resolved lyrics lookup. A nil Lyrics is the definitive
// "this track has no lyrics" answer and encodes as JSON false, which keeps it
// distinguishable from a cache miss.
type Outcome struct {
	Lyrics Lyrics
}

// Found wraps l; NotFound is the negative outcome.
func Found(l Lyrics) Outcome { return Outcome{Lyrics: l} }

var NotFound = Outcome{}

func (o Outcome) Exists() bool { return o.Lyrics != nil }

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Lyrics == nil {
		return []byte("false"), nil
	}
	return json.Marshal(o.Lyrics)
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("false")) || bytes.Equal(trimmed, []byte("null")) {
		o.Lyrics = nil
		return nil
	}
	l, err := Decode(trimmed)
	if err != nil {
		return err
	}
	o.Lyrics = l
	return nil
}

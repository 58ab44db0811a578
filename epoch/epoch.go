// Package epoch hands out a token per track so that work started for one
// track can tell, on completion, whether the player has since moved on.
package epoch

import "sync/atomic"

// Epoch identifies one track generation. Only equality is meaningful.
type Epoch uint64

// Guard tracks the current epoch. The zero value is ready to use.
type Guard struct {
	current atomic.Uint64
}

// Current returns the epoch of the active track.
func (g *Guard) Current() Epoch {
	return Epoch(g.current.Load())
}

// Advance starts a new generation and returns its token. Every epoch issued
// before the call stops being current.
func (g *Guard) Advance() Epoch {
	return Epoch(g.current.Add(1))
}

// IsCurrent reports whether e is still the active generation.
func (g *Guard) IsCurrent(e Epoch) bool {
	return g.Current() == e
}

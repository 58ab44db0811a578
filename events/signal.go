// Package events provides typed, synchronous publish/subscribe signals.
package events

import "sync"

// Handler receives a published value.
type Handler[T any] func(T)

// Signal fans a value out to every subscriber. Publish calls handlers in
// subscription order on the caller's goroutine, so a handler observes the
// state that existed at the moment of publication.
type Signal[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []subscription[T]
}

type subscription[T any] struct {
	id      uint64
	handler Handler[T]
}

// Subscribe registers handler and returns a function that removes it. The
// returned function is idempotent.
func (s *Signal[T]) Subscribe(handler Handler[T]) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, subscription[T]{id: id, handler: handler})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Signal[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.handlers {
		if sub.id == id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}

// Publish delivers value to the current subscribers. Handlers may subscribe or
// unsubscribe while being called; such changes apply to the next Publish.
func (s *Signal[T]) Publish(value T) {
	s.mu.RLock()
	handlers := s.handlers
	s.mu.RUnlock()

	for _, sub := range handlers {
		sub.handler(value)
	}
}

// Len returns the number of subscribers.
func (s *Signal[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Package circuitbreaker stops calling an upstream that keeps failing and
// probes it again after a cooldown.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit tripped, requests blocked
	StateHalfOpen              // One probe request in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	Name            string        // Name for logging
	Threshold       int           // Consecutive failures before opening
	Cooldown        time.Duration // How long to stay open before probing
	HalfOpenTimeout time.Duration // How long a probe may take before reopening

	// OnStateChange, if set, is called after every transition while the
	// breaker lock is held. It must not call back into the breaker.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock; tests use it to skip cooldowns.
	Now func() time.Time
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	cfg           Config
	state         State
	failures      int
	openedAt      time.Time
	halfOpenStart time.Time
	mu            sync.Mutex
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// Allow reports whether a request may proceed. After the cooldown the first
// caller is let through as a probe; everyone else waits for its outcome.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.cfg.Now()
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.openedAt) >= cb.cfg.Cooldown {
			cb.halfOpenStart = now
			cb.transition(StateHalfOpen)
			log.Infof("%s Cooldown passed, probing upstream", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
			return true
		}
		return false

	case StateHalfOpen:
		if now.Sub(cb.halfOpenStart) >= cb.cfg.HalfOpenTimeout {
			cb.openedAt = now
			cb.transition(StateOpen)
			log.Warnf("%s Probe timed out, back to OPEN", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
		}
		return false
	}
	return true
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
		log.Infof("%s Probe succeeded, circuit CLOSED", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case StateHalfOpen:
		cb.openedAt = cb.cfg.Now()
		cb.transition(StateOpen)
		log.Warnf("%s Probe failed, back to OPEN", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
	case StateClosed:
		if cb.failures >= cb.cfg.Threshold {
			cb.openedAt = cb.cfg.Now()
			cb.transition(StateOpen)
			log.Warnf("%s %d consecutive failures, circuit OPEN for %v",
				logcolors.CircuitBreakerPrefix(cb.cfg.Name), cb.failures, cb.cfg.Cooldown)
		}
	}
}

// Execute runs fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.halfOpenStart = time.Time{}
	cb.transition(StateClosed)
}

// TimeUntilRetry returns the remaining cooldown while open, or the remaining
// probe time while half-open. It is 0 when closed.
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.cfg.Now()
	var remaining time.Duration
	switch cb.state {
	case StateOpen:
		remaining = cb.cfg.Cooldown - now.Sub(cb.openedAt)
	case StateHalfOpen:
		remaining = cb.cfg.HalfOpenTimeout - now.Sub(cb.halfOpenStart)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

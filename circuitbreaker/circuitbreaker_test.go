package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clock *manualClock, threshold int) *CircuitBreaker {
	return New(Config{
		Name:            "test",
		Threshold:       threshold,
		Cooldown:        10 * time.Second,
		HalfOpenTimeout: 2 * time.Second,
		Now:             clock.Now,
	})
}

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{})

	if cb.cfg.Threshold != 5 {
		t.Errorf("Expected default threshold 5, got %d", cb.cfg.Threshold)
	}
	if cb.cfg.Cooldown != 5*time.Minute {
		t.Errorf("Expected default cooldown 5m, got %v", cb.cfg.Cooldown)
	}
	if cb.cfg.HalfOpenTimeout != 30*time.Second {
		t.Errorf("Expected default half-open timeout 30s, got %v", cb.cfg.HalfOpenTimeout)
	}
	if cb.Name() != "default" {
		t.Errorf("Expected default name, got %q", cb.Name())
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(newManualClock(), 3)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("Expected CLOSED after %d failures", i+1)
		}
	}
	cb.RecordFailure()

	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after threshold, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected Allow() to be false while OPEN")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := newTestBreaker(newManualClock(), 3)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	if cb.Failures() != 0 {
		t.Errorf("Expected failures reset, got %d", cb.Failures())
	}
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Error("Expected CLOSED after a single failure following success")
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name      string
		probeOK   bool
		wantState State
	}{
		{"probe success closes", true, StateClosed},
		{"probe failure reopens", false, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newManualClock()
			cb := newTestBreaker(clock, 1)
			cb.RecordFailure()

			clock.Advance(10 * time.Second)
			if !cb.Allow() {
				t.Fatal("Expected probe to be allowed after cooldown")
			}
			if cb.State() != StateHalfOpen {
				t.Fatalf("Expected HALF-OPEN, got %s", cb.State())
			}
			if cb.Allow() {
				t.Error("Expected concurrent requests to be blocked during probe")
			}

			if tt.probeOK {
				cb.RecordSuccess()
			} else {
				cb.RecordFailure()
			}
			if cb.State() != tt.wantState {
				t.Errorf("Expected %s, got %s", tt.wantState, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenTimeout(t *testing.T) {
	clock := newManualClock()
	cb := newTestBreaker(clock, 1)
	cb.RecordFailure()

	clock.Advance(10 * time.Second)
	cb.Allow()

	clock.Advance(2 * time.Second)
	if cb.Allow() {
		t.Error("Expected Allow() false when probe timed out")
	}
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after probe timeout, got %s", cb.State())
	}
	if got := cb.TimeUntilRetry(); got != 10*time.Second {
		t.Errorf("Expected full cooldown after reopen, got %v", got)
	}
}

func TestCircuitBreaker_TimeUntilRetry(t *testing.T) {
	clock := newManualClock()
	cb := newTestBreaker(clock, 1)

	if cb.TimeUntilRetry() != 0 {
		t.Error("Expected 0 while CLOSED")
	}

	cb.RecordFailure()
	clock.Advance(4 * time.Second)
	if got := cb.TimeUntilRetry(); got != 6*time.Second {
		t.Errorf("Expected 6s remaining, got %v", got)
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb := newTestBreaker(newManualClock(), 1)
	boom := errors.New("boom")

	if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Expected fn error, got %v", err)
	}
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected fn not to run while OPEN")
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newManualClock()
	var transitions []string
	cb := New(Config{
		Name:      "primary",
		Threshold: 1,
		Cooldown:  time.Second,
		Now:       clock.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()
	cb.RecordSuccess()
	cb.Reset()

	expected := []string{"CLOSED>OPEN", "OPEN>HALF-OPEN", "HALF-OPEN>CLOSED"}
	if len(transitions) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, expected[i], transitions[i])
		}
	}
}

func TestCircuitBreaker_StateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF-OPEN"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, expected %q", tt.state, got, tt.expected)
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := New(Config{Threshold: 100})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); cb.Allow() }()
		go func() { defer wg.Done(); cb.RecordFailure() }()
		go func() { defer wg.Done(); cb.RecordSuccess() }()
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED below threshold, got %s", cb.State())
	}
}

// Package resilience provides circuit breaker and retry patterns for external
// provider calls.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state — requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the failure ratio tripped — requests are rejected immediately.
	CircuitOpen
	// CircuitHalfOpen allows a single probe request to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior. Failures are
// counted over a rolling window rather than consecutively, so an unstable
// provider that intermittently succeeds still trips the breaker.
type CircuitBreakerConfig struct {
	// Window is the rolling time window over which call outcomes are
	// counted. Default: 60s.
	Window time.Duration

	// MinVolume is the minimum number of calls inside the window before the
	// breaker is eligible to open. Default: 5.
	MinVolume int

	// FailureRatio opens the circuit when the fraction of failed calls in
	// the window exceeds it. Default: 0.5.
	FailureRatio float64

	// ResetTimeout is how long the circuit stays open before a half-open
	// probe is allowed. Default: 30s.
	ResetTimeout time.Duration

	// CallTimeout bounds each wrapped call; an expired call counts as a
	// failure. Zero disables the per-call timeout.
	CallTimeout time.Duration

	// ShouldTrip optionally overrides which errors count as failures.
	// If nil, every non-nil error counts.
	ShouldTrip func(err error) bool

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the defaults used for provider breakers.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Window:       60 * time.Second,
		MinVolume:    5,
		FailureRatio: 0.5,
		ResetTimeout: 30 * time.Second,
		CallTimeout:  10 * time.Second,
	}
}

type callOutcome struct {
	at      time.Time
	failure bool
}

// CircuitBreaker implements the circuit breaker pattern for a single
// provider. One named instance per source is created at startup and shared
// by every run that touches that source.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu       sync.Mutex
	state    CircuitState
	outcomes []callOutcome
	openedAt time.Time
	probing  bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a named circuit breaker with the given config.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	if cfg.MinVolume <= 0 {
		cfg.MinVolume = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:    name,
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Name returns the breaker's source name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn through the circuit breaker. Returns ErrCircuitOpen
// without invoking fn if the circuit is open. A call exceeding CallTimeout
// is cancelled and counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allowRequest(); err != nil {
		return err
	}

	callCtx := ctx
	if cb.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cb.cfg.CallTimeout)
		defer cancel()
	}

	err := fn(callCtx)
	cb.recordResult(err)
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var val T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var ferr error
		val, ferr = fn(ctx)
		return ferr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return val, nil
}

// IsCircuitOpen reports whether err is the breaker's fail-fast rejection.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// State returns the current circuit state, accounting for reset-timeout expiry.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset forces the circuit back to closed. Useful for tests and manual recovery.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = CircuitClosed
	cb.outcomes = nil
	cb.probing = false
	if old != CircuitClosed {
		cb.notify(old, CircuitClosed)
	}
}

// Counts returns the successes and failures currently inside the rolling
// window, for observability.
func (cb *CircuitBreaker) Counts() (successes, failures int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.prune(cb.nowFunc())
	for _, o := range cb.outcomes {
		if o.failure {
			failures++
		} else {
			successes++
		}
	}
	return successes, failures
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
			cb.transition(CircuitHalfOpen)
			cb.probing = true
			return nil
		}
		return ErrCircuitOpen
	case CircuitHalfOpen:
		// Exactly one probe at a time.
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	shouldTrip := cb.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = func(e error) bool { return e != nil }
	}
	failed := err != nil && shouldTrip(err)
	now := cb.nowFunc()

	if cb.state == CircuitHalfOpen {
		cb.probing = false
		cb.outcomes = nil
		if failed {
			cb.openedAt = now
			cb.transition(CircuitOpen)
		} else {
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.prune(now)
	cb.outcomes = append(cb.outcomes, callOutcome{at: now, failure: failed})

	if cb.state == CircuitClosed && failed {
		total := len(cb.outcomes)
		failures := 0
		for _, o := range cb.outcomes {
			if o.failure {
				failures++
			}
		}
		if total >= cb.cfg.MinVolume && float64(failures)/float64(total) > cb.cfg.FailureRatio {
			cb.openedAt = now
			cb.outcomes = nil
			cb.transition(CircuitOpen)
		}
	}
}

// prune drops outcomes older than the rolling window. Callers hold cb.mu.
func (cb *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-cb.cfg.Window)
	i := 0
	for i < len(cb.outcomes) && cb.outcomes[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		cb.outcomes = cb.outcomes[i:]
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.cfg.OnStateChange != nil && from != to {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

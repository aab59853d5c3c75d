// Package resilience guards the pipeline's remote collaborators with circuit
// breakers.
//
// The central type is [CircuitBreaker], a three-state breaker
// (closed → open → half-open). [Transcriber] and [Sink] wrap the transcription
// engine and the event sink with a breaker so that a dead backend fails each
// chunk immediately instead of stalling every worker on timeouts. Nothing in
// this package retries a call.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state. All calls are forwarded.
	StateClosed State = iota

	// StateOpen means the breaker tripped after consecutive failures. Calls
	// are rejected with [ErrCircuitOpen] until the reset timeout elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after the reset timeout. A
	// limited number of calls go through; if they succeed the breaker closes,
	// otherwise it re-opens.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds tuning knobs for a [CircuitBreaker].
type Config struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before moving to
	// half-open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close the
	// breaker again. Default: 1.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition with the lock
	// released.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	halfOpenCalls   int
	halfOpenOK      int
}

// New creates a [CircuitBreaker]. Zero-value config fields are replaced with
// defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
		state:         StateClosed,
	}
}

// Name returns the configured label.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn. Errors caused by ctx ending are passed
// through but never counted as backend failures.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	inHalfOpen, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		cb.release(inHalfOpen)
		return err
	}

	from, to := cb.record(inHalfOpen, err)
	cb.notify(from, to)
	return err
}

// admit decides whether a call may proceed.
func (cb *CircuitBreaker) admit() (inHalfOpen bool, err error) {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenOK = 0
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
	}
	inHalfOpen = cb.state == StateHalfOpen
	if inHalfOpen {
		cb.halfOpenCalls++
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return inHalfOpen, nil
}

// release returns an unused half-open probe slot.
func (cb *CircuitBreaker) release(inHalfOpen bool) {
	if !inHalfOpen {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

// record updates the counters after a call and reports the transition.
func (cb *CircuitBreaker) record(inHalfOpen bool, err error) (from, to State) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	from = cb.state

	switch {
	case err != nil && inHalfOpen:
		// Any failed probe re-opens.
		cb.trip()
	case err != nil:
		cb.consecutiveFail++
		if cb.state == StateClosed && cb.consecutiveFail >= cb.maxFailures {
			cb.trip()
		}
	case inHalfOpen:
		cb.halfOpenOK++
		if cb.state == StateHalfOpen && cb.halfOpenOK >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.consecutiveFail = 0
		}
	default:
		cb.consecutiveFail = 0
	}
	return from, cb.state
}

// trip opens the breaker. Must be called with cb.mu held.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from == to {
		return
	}
	switch to {
	case StateOpen:
		slog.Warn("circuit breaker opened", "name", cb.name, "from", from.String())
	default:
		slog.Info("circuit breaker state change", "name", cb.name, "from", from.String(), "to", to.String())
	}
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the current [State]. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed].
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

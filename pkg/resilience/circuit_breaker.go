// Package resilience provides a circuit breaker used to guard outbound
// executor calls. It is a standalone component: the runner's retry logic never
// sees it, only the executor wrapping it does.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the state of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

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

// Config holds circuit breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// SuccessThreshold is the number of successes needed to close from half-open.
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
	// MaxProbes is the number of requests allowed through while half-open.
	MaxProbes int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		MaxProbes:        3,
	}
}

// CircuitBreaker tracks consecutive failures of a protected call and fails
// fast once the threshold is crossed.
type CircuitBreaker struct {
	name        string
	config      Config
	state       State
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
	mu          sync.Mutex
}

// New creates a circuit breaker with the given name and config.
func New(name string, config Config) *CircuitBreaker {
	return &CircuitBreaker{name: name, config: config, state: StateClosed}
}

// State returns the current state, accounting for open-timeout expiry.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// currentState must be called with mu held.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.config.OpenTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Execute runs fn under breaker protection, returning ErrCircuitOpen without
// calling fn when the circuit rejects the request.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.state == StateOpen {
			// First probe after the open timeout.
			cb.state = StateHalfOpen
			cb.probes = 0
		}
		if cb.probes >= cb.config.MaxProbes {
			return ErrCircuitOpen
		}
		cb.probes++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		switch cb.currentState() {
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.reset()
			}
		default:
			cb.failures = 0
		}
		return
	}

	cb.failures++
	cb.successes = 0
	cb.lastFailure = time.Now()
	switch cb.currentState() {
	case StateHalfOpen:
		// A failed probe reopens immediately.
		cb.state = StateOpen
		cb.probes = 0
	default:
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.probes = 0
		}
	}
}

// reset must be called with mu held.
func (cb *CircuitBreaker) reset() {
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // requests pass through
	StateOpen                         // requests are rejected
	StateHalfOpen                     // one probe allowed
)

func (s CircuitState) String() string {
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

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips open after consecutive failures reach a threshold and
// lets a single probe through once the cooldown has passed.
type CircuitBreaker struct {
	mu sync.Mutex

	state               CircuitState
	failureThreshold    int
	consecutiveFailures int
	cooldown            time.Duration
	lastFailure         time.Time
	probing             bool

	now func() time.Time
}

// CircuitBreakerConfig holds configuration for a CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures to trip; <= 0 disables breakers
	Cooldown         time.Duration // time to wait before probing
}

// Enabled reports whether breakers should be created for this config.
func (c CircuitBreakerConfig) Enabled() bool { return c.FailureThreshold > 0 }

// NewCircuitBreaker creates a new circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		cooldown:         cfg.Cooldown,
		now:              time.Now,
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) > cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Allow reports whether a request may proceed. In half-open state only one
// probe is admitted until it records an outcome.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) > cb.cooldown {
			cb.state = StateHalfOpen
			cb.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.lastFailure = cb.now()
	cb.probing = false

	if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// RecordSuccess records a successful call and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.probing = false
	cb.state = StateClosed
}

// Release frees a half-open probe slot without recording an outcome, for
// calls abandoned by the caller.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

// BreakerSet holds one breaker per provider name, created lazily.
type BreakerSet struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	breakers map[string]*CircuitBreaker
}

// NewBreakerSet returns nil when cfg disables breakers; a nil *BreakerSet is
// valid and never blocks.
func NewBreakerSet(cfg CircuitBreakerConfig) *BreakerSet {
	if !cfg.Enabled() {
		return nil
	}
	return &BreakerSet{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// For returns the breaker for the named provider, or nil on a nil set.
func (s *BreakerSet) For(name string) *CircuitBreaker {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[name]
	if !ok {
		cb = NewCircuitBreaker(s.cfg)
		s.breakers[name] = cb
	}
	return cb
}

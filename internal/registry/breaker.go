package registry

import (
	"sync"
	"time"
)

// BreakerState is the circuit state of one service's breaker.
type BreakerState int

const (
	// BreakerClosed lets probes through normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects probes until the recovery timeout elapses.
	BreakerOpen
	// BreakerHalfOpen permits a bounded number of trial probes.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before a half-open probe.
	RecoveryTimeout time.Duration
	// HalfOpenMaxProbes bounds in-flight probes while half-open.
	HalfOpenMaxProbes int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.HalfOpenMaxProbes <= 0 {
		c.HalfOpenMaxProbes = 1
	}
	return c
}

// breaker is the per-service circuit breaker. Each service owns one, with
// its own lock, so a stuck probe on one service never serializes another.
//
// Closed -> (threshold consecutive failures) -> Open.
// Open -> (recovery timeout elapsed) -> HalfOpen, exactly one probe allowed.
// HalfOpen -> success -> Closed (counter reset); failure -> Open.
type breaker struct {
	mu sync.Mutex

	cfg                 BreakerConfig
	state               BreakerState
	consecutiveFailures int
	halfOpenProbes      int
	lastFailure         time.Time
}

func newBreaker(cfg BreakerConfig) *breaker {
	return &breaker{cfg: cfg.withDefaults(), state: BreakerClosed}
}

// Allow reports whether a probe may proceed now, transitioning
// Open -> HalfOpen when the recovery timeout has elapsed.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.lastFailure) >= b.cfg.RecoveryTimeout {
			b.state = BreakerHalfOpen
			b.halfOpenProbes = 1
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.halfOpenProbes < b.cfg.HalfOpenMaxProbes {
			b.halfOpenProbes++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets the failure counter; a half-open success closes the
// circuit.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
		b.halfOpenProbes = 0
	}
}

// RecordFailure counts a failure; reaching the threshold (or any half-open
// failure) opens the circuit.
func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	switch b.state {
	case BreakerClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.state = BreakerOpen
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.halfOpenProbes = 0
	}
}

// State returns the current circuit state without transitioning it.
func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

package resilience

import (
	"sync"
	"time"
)

// State represents the state of a circuit breaker.
type State string

const (
	// StateClosed indicates the circuit is closed and calls are allowed.
	StateClosed State = "closed"
	// StateOpen indicates the circuit is open and calls are rejected.
	StateOpen State = "open"
	// StateHalfOpen indicates the circuit admits a single probe call.
	StateHalfOpen State = "half-open"
)

// Breaker is a per-provider circuit breaker counting consecutive failed
// logical calls. It opens at the failure threshold, rejects calls for the
// open timeout, then admits exactly one probe: success closes the circuit,
// failure reopens it for a fresh timeout.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool

	threshold   int
	openTimeout time.Duration
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, openTimeout time.Duration) *Breaker {
	return &Breaker{state: StateClosed, threshold: threshold, openTimeout: openTimeout}
}

// Allow reports whether a call may proceed at the given instant, and whether
// that call is the half-open probe. An open circuit whose timeout elapsed
// transitions to half-open and admits the caller as the probe.
func (b *Breaker) Allow(now time.Time) (allowed, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if now.Sub(b.lastFailure) >= b.openTimeout {
			b.state = StateHalfOpen
			b.probing = true
			return true, true
		}
		return false, false
	case StateHalfOpen:
		if b.probing {
			return false, false
		}
		b.probing = true
		return true, true
	}
	return false, false
}

// RecordSuccess closes the circuit and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// ReleaseProbe abandons an admitted probe that never reached the provider,
// without deciding the circuit's fate. The breaker stays half-open and the
// next Allow admits a fresh probe.
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.probing = false
	}
}

// RecordFailure counts a failed logical call and reports whether this
// failure opened (or reopened) the circuit.
func (b *Breaker) RecordFailure(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.lastFailure = now
		b.probing = false
		return true
	}

	b.failures++
	b.lastFailure = now
	if b.state == StateClosed && b.failures >= b.threshold {
		b.state = StateOpen
		return true
	}
	return false
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerSet lazily creates one breaker per provider.
type BreakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	policy   Policy
}

// NewBreakerSet creates an empty set governed by the policy.
func NewBreakerSet(policy Policy) *BreakerSet {
	return &BreakerSet{breakers: make(map[string]*Breaker), policy: policy.normalize()}
}

// Get retrieves the breaker for a provider, creating one if needed.
func (s *BreakerSet) Get(provider string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[provider]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[provider]; ok {
		return b
	}
	b = NewBreaker(s.policy.FailureThreshold, s.policy.OpenTimeout)
	s.breakers[provider] = b
	return b
}

// States returns a snapshot of every tracked breaker state.
func (s *BreakerSet) States() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make(map[string]State, len(s.breakers))
	for name, b := range s.breakers {
		states[name] = b.State()
	}
	return states
}

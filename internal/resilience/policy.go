// Package resilience implements the provider call path: retry with
// exponential backoff, per-provider circuit breaking, and ordered fallback
// across candidate providers.
package resilience

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines retry and circuit breaking behavior. One policy applies to
// every provider; breakers themselves are per provider.
type Policy struct {
	// MaxAttempts is the total number of invocations against a single
	// provider per logical call, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which backoff increases per attempt.
	BackoffMultiplier float64
	// Jitter adds randomness to backoff to prevent thundering herd.
	Jitter bool
	// FailureThreshold is the number of consecutive failed logical calls
	// that opens a provider's circuit.
	FailureThreshold int
	// OpenTimeout is how long an open circuit rejects calls before
	// admitting a half-open probe.
	OpenTimeout time.Duration
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		FailureThreshold:  5,
		OpenTimeout:       30 * time.Second,
	}
}

// normalize fills zero fields with defaults so a partially populated policy
// behaves predictably.
func (p Policy) normalize() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = d.BackoffMultiplier
	}
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = d.FailureThreshold
	}
	if p.OpenTimeout <= 0 {
		p.OpenTimeout = d.OpenTimeout
	}
	return p
}

// Backoff returns the delay before the retry following the given 1-based
// attempt number.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	if p.Jitter {
		// up to 25% jitter, additive only so the floor stays predictable
		backoff += backoff * 0.25 * rand.Float64()
		if backoff > float64(p.MaxBackoff) {
			backoff = float64(p.MaxBackoff)
		}
	}
	return time.Duration(backoff)
}

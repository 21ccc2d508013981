// Package backoff computes exponential reconnect delays and adapts them to
// github.com/cenkalti/backoff/v4 so retry loops can use RetryNotify.
package backoff

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

// Default parameters: 1s, 2s, 4s, ... capped at 30s.
const (
	DefaultBaseDelay  = time.Second
	DefaultMultiplier = 2.0
	DefaultMaxDelay   = 30 * time.Second
)

// ExponentialBackoff computes delays as BaseDelay * Multiplier^(attempt-1),
// capped at MaxDelay. Attempts are 1-indexed.
type ExponentialBackoff struct {
	BaseDelay  time.Duration `yaml:"baseDelay" json:"baseDelay"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
	MaxDelay   time.Duration `yaml:"maxDelay" json:"maxDelay"`
}

// Default returns the default calculator.
func Default() ExponentialBackoff {
	return ExponentialBackoff{
		BaseDelay:  DefaultBaseDelay,
		Multiplier: DefaultMultiplier,
		MaxDelay:   DefaultMaxDelay,
	}
}

// CalculateDelay returns the delay before the given attempt. Attempts below 1
// are treated as 1. A non-positive MaxDelay disables the cap.
func (b ExponentialBackoff) CalculateDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(b.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && (d > float64(b.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d)) {
		return b.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// JitteredDelay adds up to 10% positive jitter to CalculateDelay. The result
// is never below the unjittered delay.
func (b ExponentialBackoff) JitteredDelay(attempt int) time.Duration {
	d := b.CalculateDelay(attempt)
	jitter := time.Duration(rand.Float64() * 0.1 * float64(d))
	if d+jitter < d {
		return d
	}
	return d + jitter
}

// Schedule returns the delays for attempts 1..n.
func (b ExponentialBackoff) Schedule(n int) []time.Duration {
	out := make([]time.Duration, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		out = append(out, b.CalculateDelay(i))
	}
	return out
}

// Policy is a cenkalti/backoff BackOff driven by an ExponentialBackoff.
// It is safe for concurrent use.
type Policy struct {
	calc        ExponentialBackoff
	maxAttempts int
	jitter      bool

	mu      sync.Mutex
	attempt int
}

var _ cbackoff.BackOff = (*Policy)(nil)

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithMaxAttempts stops the policy after n delays. Zero means unlimited.
func WithMaxAttempts(n int) PolicyOption {
	return func(p *Policy) {
		p.maxAttempts = max(n, 0)
	}
}

// WithJitter enables JitteredDelay instead of CalculateDelay.
func WithJitter(enabled bool) PolicyOption {
	return func(p *Policy) {
		p.jitter = enabled
	}
}

// NewPolicy creates a policy for the calculator.
func NewPolicy(calc ExponentialBackoff, opts ...PolicyOption) *Policy {
	p := &Policy{calc: calc}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NextBackOff returns the delay before the next attempt, or backoff.Stop once
// MaxAttempts delays have been handed out.
func (p *Policy) NextBackOff() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxAttempts > 0 && p.attempt >= p.maxAttempts {
		return cbackoff.Stop
	}
	p.attempt++
	if p.jitter {
		return p.calc.JitteredDelay(p.attempt)
	}
	return p.calc.CalculateDelay(p.attempt)
}

// Reset starts the attempt count over.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempt = 0
}

// Attempt returns how many delays have been handed out since the last Reset.
func (p *Policy) Attempt() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt
}

package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDelay_Defaults(t *testing.T) {
	b := ExponentialBackoff{BaseDelay: 1000 * time.Millisecond, Multiplier: 2, MaxDelay: 30000 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
		{1000, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.CalculateDelay(tt.attempt), "attempt %d", tt.attempt)
	}
	assert.Equal(t, b, Default())
}

func TestCalculateDelay_AttemptBelowOne(t *testing.T) {
	b := Default()
	assert.Equal(t, time.Second, b.CalculateDelay(0))
	assert.Equal(t, time.Second, b.CalculateDelay(-3))
}

func TestCalculateDelay_MonotonicUntilCap(t *testing.T) {
	b := ExponentialBackoff{BaseDelay: 100 * time.Millisecond, Multiplier: 1.5, MaxDelay: 10 * time.Second}
	prev := time.Duration(0)
	for attempt := 1; attempt <= 50; attempt++ {
		d := b.CalculateDelay(attempt)
		assert.LessOrEqual(t, d, b.MaxDelay)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestCalculateDelay_NoCap(t *testing.T) {
	b := ExponentialBackoff{BaseDelay: time.Millisecond, Multiplier: 10}
	assert.Equal(t, 1000*time.Millisecond, b.CalculateDelay(4))
	assert.Positive(t, b.CalculateDelay(100))
}

func TestJitteredDelay_NeverBelowBase(t *testing.T) {
	b := Default()
	for attempt := 1; attempt <= 8; attempt++ {
		base := b.CalculateDelay(attempt)
		for i := 0; i < 50; i++ {
			d := b.JitteredDelay(attempt)
			assert.GreaterOrEqual(t, d, base)
			assert.LessOrEqual(t, d, base+base/10)
		}
	}
}

func TestJitteredDelay_Varies(t *testing.T) {
	b := Default()
	seen := map[time.Duration]bool{}
	for i := 0; i < 20; i++ {
		seen[b.JitteredDelay(3)] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestSchedule(t *testing.T) {
	b := Default()
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, b.Schedule(3))
	assert.Empty(t, b.Schedule(0))
}

// =============================================================================
// Policy
// =============================================================================

func TestPolicy_StopsAfterMaxAttempts(t *testing.T) {
	p := NewPolicy(Default(), WithMaxAttempts(3))

	assert.Equal(t, time.Second, p.NextBackOff())
	assert.Equal(t, 2*time.Second, p.NextBackOff())
	assert.Equal(t, 4*time.Second, p.NextBackOff())
	assert.Equal(t, cbackoff.Stop, p.NextBackOff())
	assert.Equal(t, 3, p.Attempt())

	p.Reset()
	assert.Equal(t, 0, p.Attempt())
	assert.Equal(t, time.Second, p.NextBackOff())
}

func TestPolicy_Jitter(t *testing.T) {
	p := NewPolicy(Default(), WithJitter(true))
	d := p.NextBackOff()
	assert.GreaterOrEqual(t, d, time.Second)
	assert.LessOrEqual(t, d, 1100*time.Millisecond)
}

func TestPolicy_DrivesRetryNotify(t *testing.T) {
	calc := ExponentialBackoff{BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 4 * time.Millisecond}
	p := NewPolicy(calc, WithMaxAttempts(5))

	calls := 0
	var delays []time.Duration
	err := cbackoff.RetryNotify(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, cbackoff.WithContext(p, context.Background()), func(_ error, d time.Duration) {
		delays = append(delays, d)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestPolicy_RetryGivesUp(t *testing.T) {
	calc := ExponentialBackoff{BaseDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}
	p := NewPolicy(calc, WithMaxAttempts(2))

	calls := 0
	boom := errors.New("boom")
	err := cbackoff.Retry(func() error {
		calls++
		return boom
	}, p)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

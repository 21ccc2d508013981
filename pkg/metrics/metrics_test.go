package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_WithLabels(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("test_total", "help", "direction")

	vec, err := c.WithLabels("sent")
	require.NoError(t, err)
	require.NoError(t, vec.Inc())
	require.NoError(t, vec.Add(2))
	assert.Equal(t, 3.0, vec.Value())

	_, err = c.WithLabels("sent", "extra")
	assert.True(t, errors.Is(err, ErrLabelCountMismatch))

	assert.ErrorIs(t, vec.Add(-1), ErrNegativeCounterValue)
}

func TestCounter_ConcurrentIncrements(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("concurrent_total", "help")

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = c.Inc()
		}()
	}
	wg.Wait()

	vec, err := c.WithLabels()
	require.NoError(t, err)
	assert.Equal(t, float64(n), vec.Value())
}

func TestGauge_AddAndSet(t *testing.T) {
	r := NewRegistry()
	g := r.NewGauge("sockets", "help", "mode")

	vec, err := g.WithLabels("fake")
	require.NoError(t, err)
	vec.Inc()
	vec.Inc()
	vec.Dec()
	assert.Equal(t, 1.0, vec.Value())

	vec.Set(5)
	vec.Add(-2)
	assert.Equal(t, 3.0, vec.Value())
}

func TestHistogram_Buckets(t *testing.T) {
	r := NewRegistry()
	h := r.NewHistogram("latency_seconds", "help", []float64{0.1, 0.01})

	require.NoError(t, h.Observe(0.005))
	require.NoError(t, h.Observe(0.05))
	require.NoError(t, h.Observe(5))

	got := map[string]float64{}
	for _, s := range h.Collect() {
		if s.Name == "latency_seconds_bucket" {
			got[s.Labels["le"]] = s.Value
		} else {
			got[s.Name] = s.Value
		}
	}
	assert.Equal(t, 1.0, got["0.01"])
	assert.Equal(t, 2.0, got["0.1"])
	assert.Equal(t, 3.0, got["+Inf"])
	assert.Equal(t, 3.0, got["latency_seconds_count"])
	assert.InDelta(t, 5.055, got["latency_seconds_sum"], 1e-9)
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("dup_total", "help")
	err := r.Register(newCounter("dup_total", "help", nil))
	assert.ErrorIs(t, err, ErrDuplicateMetric)
}

func TestRegistry_WriteText(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("msgs_total", "Messages \"seen\"\nby sockets", "direction")
	r.NewGauge("unused", "never set")

	vec, err := c.WithLabels(`re"ceived`)
	require.NoError(t, err)
	require.NoError(t, vec.Inc())

	var sb strings.Builder
	require.NoError(t, r.WriteText(&sb))
	out := sb.String()

	assert.Contains(t, out, "# HELP msgs_total Messages \"seen\"\\nby sockets\n")
	assert.Contains(t, out, "# TYPE msgs_total counter\n")
	assert.Contains(t, out, `msgs_total{direction="re\"ceived"} 1`)
	assert.NotContains(t, out, "unused", "metrics without samples are skipped")
}

func TestDefaults_InitIdempotent(t *testing.T) {
	r1 := Init()
	r2 := Init()
	require.Same(t, r1, r2)
	require.Same(t, r1, Default())
	require.NotNil(t, MessagesTotal)

	before, err := MessagesTotal.WithLabels("fake", "sent")
	require.NoError(t, err)
	start := before.Value()

	IncCounter(MessagesTotal, "fake", "sent")
	IncCounter(MessagesTotal, "wrong-arity")
	assert.Equal(t, start+1, before.Value())

	IncCounter(nil)
	AddGauge(nil, 1)
	ObserveSeconds(nil, 1)
}

package metrics

import "sync"

// Default metrics for the harness. These are nil until Init is called, so
// instrumented code checks for nil before recording.
//
// # Label Conventions
//
//   - direction: sent, received
//   - mode: fake, mockserver
var (
	// MessagesTotal counts messages passing through harness sockets.
	// Labels: mode, direction
	MessagesTotal *Counter

	// SendErrorsTotal counts Send calls rejected because the socket was not open.
	// Labels: mode
	SendErrorsTotal *Counter

	// ReconnectsTotal counts simulated reconnects.
	// Labels: mode
	ReconnectsTotal *Counter

	// HeartbeatsTotal counts heartbeat beats across all managers.
	HeartbeatsTotal *Counter

	// BufferOverflowsTotal counts messages rejected by a full message buffer.
	BufferOverflowsTotal *Counter

	// ActiveSockets tracks sockets created by harness managers and not yet cleaned up.
	// Labels: mode
	ActiveSockets *Gauge

	// ConnectDuration tracks time from Setup to the connected state, in seconds.
	// Labels: mode
	ConnectDuration *Histogram

	// RoundTripDuration tracks MeasureMessageRoundTrip results, in seconds.
	// Labels: mode
	RoundTripDuration *Histogram

	defaultRegistry *Registry
	initOnce        sync.Once
)

// latencyBuckets are tuned for in-process sockets: sub-millisecond to one second.
var latencyBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Init initializes the default metrics and returns the registry.
// It is idempotent and safe to call from multiple goroutines.
func Init() *Registry {
	initOnce.Do(func() {
		r := NewRegistry()

		MessagesTotal = r.NewCounter("wsmock_messages_total",
			"Total number of messages sent or received by harness sockets", "mode", "direction")
		SendErrorsTotal = r.NewCounter("wsmock_send_errors_total",
			"Total number of sends rejected because the socket was not open", "mode")
		ReconnectsTotal = r.NewCounter("wsmock_reconnects_total",
			"Total number of simulated reconnects", "mode")
		HeartbeatsTotal = r.NewCounter("wsmock_heartbeats_total",
			"Total number of heartbeat beats")
		BufferOverflowsTotal = r.NewCounter("wsmock_buffer_overflows_total",
			"Total number of messages rejected by a full message buffer")
		ActiveSockets = r.NewGauge("wsmock_active_sockets",
			"Number of sockets owned by harness managers", "mode")
		ConnectDuration = r.NewHistogram("wsmock_connect_duration_seconds",
			"Time from setup until the socket reported connected", latencyBuckets, "mode")
		RoundTripDuration = r.NewHistogram("wsmock_roundtrip_duration_seconds",
			"Measured message round-trip time", latencyBuckets, "mode")

		defaultRegistry = r
	})
	return defaultRegistry
}

// Default returns the default registry, or nil if Init has not been called.
func Default() *Registry {
	return defaultRegistry
}

// IncCounter increments a labeled counter if it has been initialized.
// Label mismatches are ignored; metrics must never fail a test.
func IncCounter(c *Counter, labels ...string) {
	if c == nil {
		return
	}
	if vec, err := c.WithLabels(labels...); err == nil {
		_ = vec.Inc()
	}
}

// AddGauge adds delta to a labeled gauge if it has been initialized.
func AddGauge(g *Gauge, delta float64, labels ...string) {
	if g == nil {
		return
	}
	if vec, err := g.WithLabels(labels...); err == nil {
		vec.Add(delta)
	}
}

// ObserveSeconds records a value on a labeled histogram if it has been initialized.
func ObserveSeconds(h *Histogram, seconds float64, labels ...string) {
	if h == nil {
		return
	}
	if vec, err := h.WithLabels(labels...); err == nil {
		vec.Observe(seconds)
	}
}

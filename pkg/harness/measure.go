package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/getmockd/wsmock/pkg/metrics"
)

// MeasureConnectionTime runs Setup and returns how long the socket took to
// reach the connected state.
func (m *Manager) MeasureConnectionTime(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := m.Setup(); err != nil {
		return 0, err
	}
	if err := m.WaitForConnection(ctx, m.connectTimeout); err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	metrics.ObserveSeconds(metrics.ConnectDuration, elapsed.Seconds(), m.mode())
	return elapsed, nil
}

// MeasureMessageRoundTrip sends msg, simulates the server echoing it back and
// returns the time until the echo shows up in the received messages.
func (m *Manager) MeasureMessageRoundTrip(ctx context.Context, msg any) (time.Duration, error) {
	before := m.buf.CountReceived()
	start := time.Now()
	if err := m.SendMessage(msg); err != nil {
		return 0, err
	}

	gen := m.generation()
	m.deferCurrent(gen, func() {
		if err := m.SimulateIncomingMessage(msg); err != nil {
			m.logger.Debug("round trip echo failed", "error", err)
		}
	})

	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for m.buf.CountReceived() <= before {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %v", ErrRoundTripTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	elapsed := time.Since(start)
	metrics.ObserveSeconds(metrics.RoundTripDuration, elapsed.Seconds(), m.mode())
	return elapsed, nil
}

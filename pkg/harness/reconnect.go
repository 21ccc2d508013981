package harness

import (
	"context"
	"fmt"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"

	"github.com/getmockd/wsmock/pkg/backoff"
	"github.com/getmockd/wsmock/pkg/connstate"
	"github.com/getmockd/wsmock/pkg/heartbeat"
	"github.com/getmockd/wsmock/pkg/socket"
)

// PingMessage is what StartHeartbeat sends on every beat.
var PingMessage = map[string]string{"type": "ping"}

// StartHeartbeat registers and starts a heartbeat under key that sends
// PingMessage whenever the socket is open. It replaces any heartbeat already
// registered under key.
func (m *Manager) StartHeartbeat(key string, cfg heartbeat.Config) (*heartbeat.Manager, error) {
	if _, err := m.current(); err != nil {
		return nil, err
	}

	hb := heartbeat.New(cfg,
		heartbeat.WithLogger(m.logger),
		heartbeat.WithOnBeat(func(heartbeat.Stats) {
			conn, err := m.current()
			if err != nil || conn.ReadyState() != socket.Open {
				return
			}
			if err := m.SendMessage(PingMessage); err != nil {
				m.logger.Debug("heartbeat ping failed", "key", key, "error", err)
			}
		}))

	m.mu.Lock()
	if m.heartbeats == nil {
		m.heartbeats = make(map[string]*heartbeat.Manager)
	}
	m.heartbeats[key] = hb
	m.mu.Unlock()

	m.registry.Register(key, hb)
	hb.Start()
	return hb, nil
}

// ReconnectWithBackoff reconnects until the socket is connected again, waiting
// between attempts according to the configured backoff. A non-positive
// maxAttempts uses the configured limit. It returns the number of attempts made.
func (m *Manager) ReconnectWithBackoff(ctx context.Context, maxAttempts int) (int, error) {
	if _, err := m.current(); err != nil {
		return 0, err
	}
	if maxAttempts <= 0 {
		maxAttempts = m.maxAttempts
	}

	var policy cbackoff.BackOff = backoff.NewPolicy(m.backoff, backoff.WithJitter(m.jitter))
	if maxAttempts > 0 {
		policy = cbackoff.WithMaxRetries(policy, uint64(maxAttempts-1))
	}
	policy = cbackoff.WithContext(policy, ctx)

	attempts := 0
	op := func() error {
		attempts++
		mark := len(m.state.History())
		if err := m.SimulateReconnect(); err != nil {
			return cbackoff.Permanent(err)
		}
		return m.awaitReconnect(ctx, mark)
	}
	notify := func(err error, d time.Duration) {
		m.logger.Debug("reconnect attempt failed", "attempt", attempts, "retryIn", d, "error", err)
	}

	if err := cbackoff.RetryNotify(op, policy, notify); err != nil {
		return attempts, fmt.Errorf("reconnect after %d attempts: %w", attempts, err)
	}
	return attempts, nil
}

// awaitReconnect waits for the outcome of one reconnect attempt: connected, or
// back to disconnected. Only transitions after the first reconnecting entry at
// or past mark count, so a close that was still in progress when the attempt
// started does not fail it. A failed connect reports an error and then a
// close, and the attempt is judged on the close so that the close of one
// attempt cannot leak into the next.
func (m *Manager) awaitReconnect(ctx context.Context, mark int) error {
	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if err := m.sync.Settle(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
		}
		done, err := reconnectOutcome(m.state.History(), mark)
		if done {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConnectionTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func reconnectOutcome(history []connstate.Transition, mark int) (bool, error) {
	if len(history) < mark {
		return true, fmt.Errorf("%w: state was reset", ErrReconnectFailed)
	}
	started := false
	for _, tr := range history[mark:] {
		if !started {
			started = tr.State == connstate.Reconnecting
			continue
		}
		switch tr.State {
		case connstate.Connected:
			return true, nil
		case connstate.Disconnected:
			return true, ErrReconnectFailed
		}
	}
	return false, nil
}

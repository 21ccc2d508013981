package harness

import (
	"context"
	"testing"
	"time"

	"github.com/getmockd/wsmock/pkg/connstate"
)

// DefaultAssertTimeout is how long the Assert helpers wait for a condition.
const DefaultAssertTimeout = time.Second

// Eventually settles pending events and polls cond until it returns true or
// timeout elapses, and reports a test error with msg if it never does.
func (m *Manager) Eventually(t testing.TB, cond func() bool, timeout time.Duration, msg string) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		_ = m.sync.Settle(ctx)
		cancel()
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			t.Errorf("condition not met within %s: %s", timeout, msg)
			return false
		}
		time.Sleep(pollInterval)
	}
}

// AssertState settles pending events and asserts the connection state.
func (m *Manager) AssertState(t testing.TB, expected connstate.State) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultAssertTimeout)
	defer cancel()
	if err := m.Settle(ctx); err != nil {
		t.Errorf("events did not settle: %v", err)
		return false
	}
	if actual := m.ConnectionState(); actual != expected {
		t.Errorf("connection state does not match\nexpected: %s\nactual: %s", expected, actual)
		return false
	}
	return true
}

// AssertReceivedCount waits until exactly n received messages are buffered.
func (m *Manager) AssertReceivedCount(t testing.TB, n int) bool {
	t.Helper()
	return m.assertCount(t, "received", n, m.buf.CountReceived)
}

// AssertSentCount waits until exactly n sent messages are buffered.
func (m *Manager) AssertSentCount(t testing.TB, n int) bool {
	t.Helper()
	return m.assertCount(t, "sent", n, m.buf.CountSent)
}

func (m *Manager) assertCount(t testing.TB, what string, n int, count func() int) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultAssertTimeout)
	defer cancel()
	deadline, _ := ctx.Deadline()
	for {
		_ = m.Settle(ctx)
		actual := count()
		if actual == n {
			return true
		}
		if time.Now().After(deadline) {
			t.Errorf("%s message count does not match\nexpected: %d\nactual: %d", what, n, actual)
			return false
		}
		time.Sleep(pollInterval)
	}
}

package logging

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
)

// tbWriter forwards each formatted record to testing.TB.Log.
// Records written after the test finished are dropped; t.Log panics at that point
// and timers in the harness can outlive a test by a few milliseconds.
type tbWriter struct {
	tb   testing.TB
	done *atomic.Bool
}

func (w tbWriter) Write(p []byte) (int, error) {
	if w.done.Load() {
		return len(p), nil
	}
	w.tb.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewTestHandler returns a text handler that writes to the test log.
func NewTestHandler(tb testing.TB, level Level) slog.Handler {
	done := &atomic.Bool{}
	tb.Cleanup(func() { done.Store(true) })
	return slog.NewTextHandler(tbWriter{tb: tb, done: done}, &slog.HandlerOptions{Level: level})
}

// NewTestLogger returns a debug-level logger that writes to the test log.
func NewTestLogger(tb testing.TB) *slog.Logger {
	return slog.New(NewTestHandler(tb, LevelDebug))
}

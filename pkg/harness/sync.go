package harness

import (
	"context"
	"log/slog"
	"sync"

	"github.com/getmockd/wsmock/pkg/logging"
)

// Synchronizer runs callbacks one at a time, in the order they were deferred,
// on a goroutine other than the caller's. Callbacks may defer further
// callbacks; those run after the current one returns.
type Synchronizer struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	running bool
	idle    chan struct{} // closed while nothing is queued or running
}

// NewSynchronizer creates an idle synchronizer.
func NewSynchronizer(logger *slog.Logger) *Synchronizer {
	idle := make(chan struct{})
	close(idle)
	return &Synchronizer{logger: logging.OrNop(logger), idle: idle}
}

// Defer queues fn.
func (s *Synchronizer) Defer(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
	if s.running {
		return
	}
	s.running = true
	s.idle = make(chan struct{})
	go s.drain()
}

func (s *Synchronizer) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(fn)
	}
}

func (s *Synchronizer) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("deferred callback panicked", "panic", r)
		}
	}()
	fn()
}

// Settle blocks until every deferred callback, including ones deferred while
// waiting, has run.
func (s *Synchronizer) Settle(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
			s.mu.Lock()
			done := !s.running
			s.mu.Unlock()
			if done {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of queued callbacks, not counting one in progress.
func (s *Synchronizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

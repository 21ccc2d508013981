// Package heartbeat runs periodic keepalive beats for simulated connections.
//
// A Manager owns one ticker. Registry keys managers by name so that
// registering a new manager under an existing key tears the old one down,
// which keeps timers from leaking between tests.
package heartbeat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/wsmock/pkg/logging"
	"github.com/getmockd/wsmock/pkg/metrics"
)

// DefaultInterval is the beat interval used by DefaultConfig.
const DefaultInterval = 30 * time.Second

// Config controls a heartbeat.
type Config struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// DefaultConfig returns an enabled heartbeat beating every 30 seconds.
func DefaultConfig() Config {
	return Config{Enabled: true, Interval: DefaultInterval}
}

// Stats is a snapshot of a manager.
type Stats struct {
	TotalBeats   int64     `json:"totalBeats"`
	LastBeatTime time.Time `json:"lastBeatTime"`
	IsActive     bool      `json:"isActive"`
	// ScheduleID identifies the current schedule. It is zero while idle and
	// changes on every Start.
	ScheduleID uint64 `json:"scheduleId"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithOnBeat sets a callback invoked after each beat with the post-beat stats.
// Callbacks never run concurrently for one manager.
func WithOnBeat(fn func(Stats)) Option {
	return func(m *Manager) {
		m.onBeat = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager schedules beats at a fixed interval.
type Manager struct {
	cfg    Config
	onBeat func(Stats)
	logger *slog.Logger

	beatMu sync.Mutex // serializes beats and onBeat calls

	mu         sync.Mutex
	totalBeats int64
	lastBeat   time.Time
	active     bool
	ticker     *time.Ticker
	done       chan struct{}
	scheduleID uint64
	nextID     uint64
}

// New creates an idle manager.
func New(cfg Config, opts ...Option) *Manager {
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.Component(m.logger, "heartbeat")
	return m
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Start begins beating. It does nothing if the manager is already running,
// disabled, or has a non-positive interval.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runningLocked() || !m.cfg.Enabled {
		return
	}
	if m.cfg.Interval <= 0 {
		m.logger.Warn("heartbeat not started: interval must be positive", "interval", m.cfg.Interval)
		return
	}

	m.nextID++
	m.scheduleID = m.nextID
	m.active = true
	m.ticker = time.NewTicker(m.cfg.Interval)
	m.done = make(chan struct{})

	go m.run(m.scheduleID, m.ticker, m.done)
	m.logger.Debug("heartbeat started", "interval", m.cfg.Interval, "schedule", m.scheduleID)
}

func (m *Manager) run(id uint64, ticker *time.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.beat(id)
		}
	}
}

func (m *Manager) beat(id uint64) {
	m.beatMu.Lock()
	defer m.beatMu.Unlock()

	m.mu.Lock()
	if !m.active || m.scheduleID != id {
		m.mu.Unlock()
		return
	}
	m.totalBeats++
	m.lastBeat = time.Now()
	snap := m.statsLocked()
	m.mu.Unlock()

	metrics.IncCounter(metrics.HeartbeatsTotal)

	if m.onBeat != nil {
		m.invokeOnBeat(snap)
	}
}

func (m *Manager) invokeOnBeat(snap Stats) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("heartbeat callback panicked", "panic", r)
		}
	}()
	m.onBeat(snap)
}

// Stop cancels the schedule. No beat is counted after Stop returns.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.ticker == nil {
		m.active = false
		return
	}
	m.ticker.Stop()
	close(m.done)
	m.ticker = nil
	m.done = nil
	m.active = false
	m.logger.Debug("heartbeat stopped", "schedule", m.scheduleID, "beats", m.totalBeats)
	m.scheduleID = 0
}

// IsRunning reports whether a schedule exists and the manager is active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningLocked()
}

func (m *Manager) runningLocked() bool {
	return m.ticker != nil && m.active
}

// Stats returns a snapshot of the manager.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Manager) statsLocked() Stats {
	return Stats{
		TotalBeats:   m.totalBeats,
		LastBeatTime: m.lastBeat,
		IsActive:     m.active,
		ScheduleID:   m.scheduleID,
	}
}

// Cleanup stops the manager and resets its counters.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.totalBeats = 0
	m.lastBeat = time.Time{}
}

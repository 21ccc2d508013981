// Package connstate records the logical connection state of a simulated socket
// and the ordered history of its transitions.
package connstate

import (
	"sync"
	"time"
)

// State is the logical connection state seen by code under test.
type State string

const (
	Connecting   State = "connecting"
	Connected    State = "connected"
	Disconnected State = "disconnected"
	Reconnecting State = "reconnecting"
	Error        State = "error"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case Connecting, Connected, Disconnected, Reconnecting, Error:
		return true
	default:
		return false
	}
}

// Transition is one entry of the state history.
type Transition struct {
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager owns the current state and its append-only history.
// The zero value is not usable; call New.
type Manager struct {
	mu      sync.RWMutex
	state   State
	history []Transition
	now     func() time.Time
}

// New returns a Manager in the disconnected state with an empty history.
func New() *Manager {
	return &Manager{state: Disconnected, now: time.Now}
}

// SetState overwrites the current state and appends the transition to history.
// Setting the same state twice records two entries.
func (m *Manager) SetState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.history = append(m.history, Transition{State: s, Timestamp: m.now()})
}

// State returns the last state set.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Is reports whether the current state equals s.
func (m *Manager) Is(s State) bool {
	return m.State() == s
}

// History returns a copy of the transition history, oldest first.
func (m *Manager) History() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Last returns the most recent transition, if any.
func (m *Manager) Last() (Transition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return Transition{}, false
	}
	return m.history[len(m.history)-1], true
}

// ClearHistory empties the history without touching the current state.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}

// Reset clears the history and returns to the disconnected state.
// The reset itself is not recorded.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.state = Disconnected
}

package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/wsmock/pkg/backoff"
	"github.com/getmockd/wsmock/pkg/buffer"
	"github.com/getmockd/wsmock/pkg/connstate"
	"github.com/getmockd/wsmock/pkg/heartbeat"
	"github.com/getmockd/wsmock/pkg/logging"
	"github.com/getmockd/wsmock/pkg/metrics"
	"github.com/getmockd/wsmock/pkg/mockserver"
	"github.com/getmockd/wsmock/pkg/socket"
)

const (
	modeFake       = "fake"
	modeMockServer = "mockserver"

	pollInterval = time.Millisecond
)

// Manager drives one socket through a test.
type Manager struct {
	url            string
	protocols      []string
	useMockServer  bool
	socketOpts     []socket.Option
	serverOpts     []mockserver.Option
	bufferSize     int
	registry       *heartbeat.Registry
	logger         *slog.Logger
	backoff        backoff.ExponentialBackoff
	maxAttempts    int
	jitter         bool
	heartbeat      heartbeat.Config
	connectTimeout time.Duration
	optErr         error

	sync  *Synchronizer
	state *connstate.Manager
	buf   *buffer.Buffer

	// applyMu serializes deferred callbacks against the generation bump in
	// Cleanup, so a callback that passed its generation check finishes
	// before the reset.
	applyMu sync.Mutex

	mu         sync.Mutex
	gen        uint64
	conn       socket.Conn
	srv        *mockserver.Server
	history    []HistoryEntry
	heartbeats map[string]*heartbeat.Manager
	active     bool

	// closePending is set by Close until the close event arrives.
	// reconnectAfterClose makes that close event queue the reconnecting state.
	closePending        bool
	reconnectAfterClose bool
}

// New creates a manager. Nothing is connected until Setup.
func New(opts ...Option) *Manager {
	m := defaultManager()
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.Component(m.logger, "harness")
	if m.registry == nil {
		m.registry = heartbeat.NewRegistry()
	}
	m.sync = NewSynchronizer(m.logger)
	m.state = connstate.New()
	m.buf = buffer.New(m.bufferSize)
	return m
}

func (m *Manager) mode() string {
	if m.useMockServer {
		return modeMockServer
	}
	return modeFake
}

// Setup cleans up any previous socket, creates a new one, wires its events
// and starts connecting.
func (m *Manager) Setup() error {
	m.Cleanup()
	if m.optErr != nil {
		return fmt.Errorf("setup: %w", m.optErr)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen

	var conn socket.Conn
	if m.useMockServer {
		srv := mockserver.New(append(m.serverOpts, mockserver.WithLogger(m.logger))...)
		if err := srv.Start(); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("start mock server: %w", err)
		}
		m.srv = srv
		conn = mockserver.NewClient(srv, m.url,
			mockserver.WithClientProtocols(m.protocols...),
			mockserver.WithClientLogger(m.logger))
	} else {
		opts := append([]socket.Option{socket.WithProtocols(m.protocols...)}, m.socketOpts...)
		opts = append(opts, socket.WithManualConnect(), socket.WithLogger(m.logger))
		conn = socket.New(m.url, opts...)
	}
	m.conn = conn
	m.active = true
	m.mu.Unlock()

	m.wire(conn, gen)
	m.state.SetState(connstate.Connecting)
	metrics.AddGauge(metrics.ActiveSockets, 1, m.mode())
	m.logger.Debug("socket created", "socket", conn.ID(), "url", conn.URL(), "mode", m.mode())

	return conn.Connect()
}

// wire routes socket events through the synchronizer. Callbacks from a socket
// replaced by a later Setup are ignored.
func (m *Manager) wire(conn socket.Conn, gen uint64) {
	apply := func(fn func()) {
		m.deferCurrent(gen, fn)
	}

	conn.AddEventListener(socket.EventOpen, func(socket.Event) {
		apply(func() {
			m.record(HistoryEntry{Type: HistoryOpen})
			m.state.SetState(connstate.Connected)
		})
	})
	conn.AddEventListener(socket.EventMessage, func(ev socket.Event) {
		apply(func() {
			m.record(HistoryEntry{Type: HistoryMessage, Data: ev.Data})
			if !m.buf.AddReceived(ev.Data) {
				m.logger.Warn("message buffer full, dropping received message", "size", m.buf.MaxSize())
			}
			metrics.IncCounter(metrics.MessagesTotal, m.mode(), string(buffer.Received))
		})
	})
	conn.AddEventListener(socket.EventClose, func(ev socket.Event) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != gen {
			return
		}
		reconnect := m.reconnectAfterClose
		m.closePending, m.reconnectAfterClose = false, false

		apply(func() {
			m.record(HistoryEntry{Type: HistoryClosed, Code: int(ev.Code), Reason: ev.Reason})
			m.state.SetState(connstate.Disconnected)
		})
		if reconnect {
			apply(m.enterReconnecting)
		}
	})
	conn.AddEventListener(socket.EventError, func(ev socket.Event) {
		apply(func() {
			entry := HistoryEntry{Type: HistoryError}
			if ev.Err != nil {
				entry.Error = ev.Err.Error()
			}
			m.record(entry)
			m.state.SetState(connstate.Error)
		})
	})
}

// deferCurrent queues fn to run only while gen is still the current generation.
func (m *Manager) deferCurrent(gen uint64, fn func()) {
	m.sync.Defer(func() {
		m.applyMu.Lock()
		defer m.applyMu.Unlock()
		if m.generation() == gen {
			fn()
		}
	})
}

func (m *Manager) enterReconnecting() {
	m.state.SetState(connstate.Reconnecting)
}

func (m *Manager) record(e HistoryEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	m.mu.Lock()
	m.history = append(m.history, e)
	m.mu.Unlock()
}

func (m *Manager) current() (socket.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil, ErrNotSetup
	}
	return m.conn, nil
}

// Settle waits until every pending event callback has been applied.
func (m *Manager) Settle(ctx context.Context) error {
	return m.sync.Settle(ctx)
}

// WaitForConnection polls until the state is connected. A non-positive
// timeout waits until ctx is done.
func (m *Manager) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	if _, err := m.current(); err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if m.state.Is(connstate.Connected) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrConnectionTimeout, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SendMessage sends data through the socket and records it. A send on a
// socket that is not open is recorded as send_error and returned.
func (m *Manager) SendMessage(data any) error {
	conn, err := m.current()
	if err != nil {
		return err
	}
	if err := conn.Send(data); err != nil {
		m.record(HistoryEntry{Type: HistorySendError, Error: err.Error()})
		metrics.IncCounter(metrics.SendErrorsTotal, m.mode())
		return err
	}

	_, b, _ := socket.Encode(data)
	if !m.buf.AddSent(b) {
		m.logger.Warn("message buffer full, dropping sent message", "size", m.buf.MaxSize())
	}
	metrics.IncCounter(metrics.MessagesTotal, m.mode(), string(buffer.Sent))
	m.record(HistoryEntry{Type: HistorySend, Data: b})
	return nil
}

// SimulateIncomingMessage makes the socket receive data as if sent by the
// server. A simulation on a socket that is not open is recorded as
// simulate_message_error and returned.
func (m *Manager) SimulateIncomingMessage(data any) error {
	conn, err := m.current()
	if err != nil {
		return err
	}
	_, b, err := socket.Encode(data)
	if err != nil {
		return err
	}
	if st := conn.ReadyState(); st != socket.Open {
		err := fmt.Errorf("%w (state %s)", socket.ErrNotOpen, st)
		m.record(HistoryEntry{Type: HistorySimulateMessageError, Data: b, Error: err.Error()})
		return err
	}

	// Recorded before delegating so it precedes the message event.
	m.record(HistoryEntry{Type: HistorySimulateMessage, Data: b})
	if err := conn.SimulateMessage(data); err != nil {
		m.record(HistoryEntry{Type: HistorySimulateMessageError, Data: b, Error: err.Error()})
		return err
	}
	return nil
}

// SimulateError makes the socket report err. A nil err uses socket.ErrSimulated.
func (m *Manager) SimulateError(err error) error {
	conn, cerr := m.current()
	if cerr != nil {
		return cerr
	}
	if err == nil {
		err = socket.ErrSimulated
	}
	m.record(HistoryEntry{Type: HistorySimulateError, Error: err.Error()})
	conn.SimulateError(err)
	return nil
}

// Close starts closing the socket. A zero code means normal closure.
func (m *Manager) Close(code socket.CloseCode, reason string) error {
	conn, err := m.current()
	if err != nil {
		return err
	}
	if code == 0 {
		code = socket.CloseNormalClosure
	}
	if st := conn.ReadyState(); st == socket.Open || st == socket.Connecting {
		m.mu.Lock()
		if m.conn == conn {
			m.closePending = true
		}
		m.mu.Unlock()
	}
	m.record(HistoryEntry{Type: HistoryClose, Code: int(code), Reason: reason})
	return conn.Close(code, reason)
}

// SimulateReconnect moves the state to reconnecting and restarts the socket's
// open sequence. When a close is still in progress, the socket completes it
// first and the reconnecting state follows the disconnect.
func (m *Manager) SimulateReconnect() error {
	conn, err := m.current()
	if err != nil {
		return err
	}
	st := conn.ReadyState()

	m.mu.Lock()
	gen := m.gen
	if m.closePending && (st == socket.Closing || st == socket.Closed) {
		m.reconnectAfterClose = true
	} else {
		m.closePending = false
		m.deferCurrent(gen, m.enterReconnecting)
	}
	m.mu.Unlock()

	m.record(HistoryEntry{Type: HistoryReconnect})
	metrics.IncCounter(metrics.ReconnectsTotal, m.mode())
	return conn.SimulateReconnect()
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// ConnectionState returns the current logical state.
func (m *Manager) ConnectionState() connstate.State {
	return m.state.State()
}

// StateHistory returns a copy of the state transitions.
func (m *Manager) StateHistory() []connstate.Transition {
	return m.state.History()
}

// ConnectionHistory returns a copy of the event history.
func (m *Manager) ConnectionHistory() []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// SentMessages returns buffered outbound messages.
func (m *Manager) SentMessages() []buffer.Message {
	return m.buf.Sent()
}

// ReceivedMessages returns buffered inbound messages.
func (m *Manager) ReceivedMessages() []buffer.Message {
	return m.buf.Received()
}

// FlushMessages empties the buffer and returns what it held.
func (m *Manager) FlushMessages() []buffer.Message {
	return m.buf.Flush()
}

// Socket returns the current socket, or nil before Setup.
func (m *Manager) Socket() socket.Conn {
	conn, _ := m.current()
	return conn
}

// Server returns the mock server, or nil for the fake variant.
func (m *Manager) Server() *mockserver.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.srv
}

// Registry returns the heartbeat registry.
func (m *Manager) Registry() *heartbeat.Registry {
	return m.registry
}

// HeartbeatConfig returns the configured heartbeat settings.
func (m *Manager) HeartbeatConfig() heartbeat.Config {
	return m.heartbeat
}

// Cleanup stops heartbeats, closes the socket and the mock server, and clears
// all recorded state. It never fails and may be called at any time.
func (m *Manager) Cleanup() {
	m.applyMu.Lock()
	m.mu.Lock()
	m.gen++
	conn, srv := m.conn, m.srv
	beats := m.heartbeats
	active := m.active
	m.conn, m.srv, m.heartbeats, m.active = nil, nil, nil, false
	m.closePending, m.reconnectAfterClose = false, false
	m.history = nil
	m.mu.Unlock()
	m.applyMu.Unlock()

	for key, hb := range beats {
		if cur, ok := m.registry.Get(key); ok && cur == hb {
			m.registry.Unregister(key)
			continue
		}
		hb.Cleanup()
	}
	if conn != nil {
		if err := conn.Close(socket.CloseNormalClosure, "cleanup"); err != nil {
			m.logger.Debug("cleanup: close socket", "error", err)
		}
	}
	if srv != nil {
		srv.Clean()
	}
	if active {
		metrics.AddGauge(metrics.ActiveSockets, -1, m.mode())
	}

	m.buf.Clear()
	m.state.Reset()
}

package harness

import (
	"log/slog"
	"time"

	"github.com/getmockd/wsmock/pkg/backoff"
	"github.com/getmockd/wsmock/pkg/buffer"
	"github.com/getmockd/wsmock/pkg/config"
	"github.com/getmockd/wsmock/pkg/heartbeat"
	"github.com/getmockd/wsmock/pkg/mockserver"
	"github.com/getmockd/wsmock/pkg/socket"
)

const (
	// DefaultConnectTimeout bounds MeasureConnectionTime and each reconnect attempt.
	DefaultConnectTimeout = 5 * time.Second
	// DefaultMaxReconnectAttempts is used when ReconnectWithBackoff gets no limit.
	DefaultMaxReconnectAttempts = 5
)

// Option configures a Manager.
type Option func(*Manager)

// WithURL sets the URL the socket connects to.
func WithURL(url string) Option {
	return func(m *Manager) {
		m.url = url
	}
}

// WithMockServer selects the mock server variant: Setup starts an in-memory
// server and connects a real WebSocket client to it.
func WithMockServer(enabled bool) Option {
	return func(m *Manager) {
		m.useMockServer = enabled
	}
}

// WithMockServerOptions sets the options for the mock server variant.
func WithMockServerOptions(opts ...mockserver.Option) Option {
	return func(m *Manager) {
		m.serverOpts = append(m.serverOpts, opts...)
	}
}

// WithSocketOptions sets options for the fake socket.
func WithSocketOptions(opts ...socket.Option) Option {
	return func(m *Manager) {
		m.socketOpts = append(m.socketOpts, opts...)
	}
}

// WithProtocols sets the requested subprotocols for either variant.
func WithProtocols(protocols ...string) Option {
	return func(m *Manager) {
		m.protocols = append([]string(nil), protocols...)
	}
}

// WithBufferSize bounds the message buffer.
func WithBufferSize(n int) Option {
	return func(m *Manager) {
		m.bufferSize = n
	}
}

// WithRegistry shares a heartbeat registry between managers.
func WithRegistry(r *heartbeat.Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithBackoff sets the delay calculator used by ReconnectWithBackoff.
func WithBackoff(b backoff.ExponentialBackoff) Option {
	return func(m *Manager) {
		m.backoff = b
	}
}

// WithJitter randomizes reconnect delays.
func WithJitter(enabled bool) Option {
	return func(m *Manager) {
		m.jitter = enabled
	}
}

// WithConnectTimeout bounds connection waits that have no explicit timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.connectTimeout = d
	}
}

// FromConfig applies a loaded configuration. Matcher compile errors are
// reported by Setup.
func FromConfig(cfg *config.Config) Option {
	return func(m *Manager) {
		m.url = cfg.Socket.URL
		m.protocols = append([]string(nil), cfg.Socket.Protocols...)
		m.socketOpts = append(m.socketOpts, cfg.SocketOptions()...)
		m.bufferSize = cfg.Buffer.MaxSize
		m.backoff = cfg.BackoffCalculator()
		m.maxAttempts = cfg.Backoff.MaxAttempts
		m.jitter = cfg.Backoff.Jitter
		m.heartbeat = cfg.HeartbeatConfig()
		m.useMockServer = cfg.MockServer.Enabled
		if !cfg.MockServer.Enabled {
			return
		}
		opts, err := cfg.MockServerOptions()
		if err != nil {
			m.optErr = err
			return
		}
		m.serverOpts = append(m.serverOpts, opts...)
	}
}

func defaultManager() *Manager {
	return &Manager{
		url:            config.DefaultURL,
		bufferSize:     buffer.DefaultMaxSize,
		backoff:        backoff.Default(),
		maxAttempts:    DefaultMaxReconnectAttempts,
		heartbeat:      heartbeat.DefaultConfig(),
		connectTimeout: DefaultConnectTimeout,
	}
}

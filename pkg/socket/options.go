package socket

import (
	"log/slog"
	"time"
)

// Default timings for the fake socket.
const (
	DefaultConnectionDelay = 10 * time.Millisecond
	DefaultCloseDelay      = 5 * time.Millisecond
)

type options struct {
	protocols       []string
	connectionDelay time.Duration
	closeDelay      time.Duration
	errorPolicy     ErrorPolicy
	manualConnect   bool
	failConnects    int
	id              string
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		connectionDelay: DefaultConnectionDelay,
		closeDelay:      DefaultCloseDelay,
		errorPolicy:     ErrorPolicyNotify,
	}
}

// Option configures a Socket.
type Option func(*options)

// WithProtocols sets the requested subprotocols. The first one is reported
// by Protocol once the socket is open.
func WithProtocols(protocols ...string) Option {
	return func(o *options) {
		o.protocols = append([]string(nil), protocols...)
	}
}

// WithConnectionDelay sets how long the socket stays CONNECTING.
func WithConnectionDelay(d time.Duration) Option {
	return func(o *options) {
		o.connectionDelay = max(d, 0)
	}
}

// WithCloseDelay sets how long the socket stays CLOSING.
func WithCloseDelay(d time.Duration) Option {
	return func(o *options) {
		o.closeDelay = max(d, 0)
	}
}

// WithErrorPolicy sets what SimulateError does to the ready state.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(o *options) {
		o.errorPolicy = p
	}
}

// WithManualConnect keeps the socket CONNECTING until Connect is called,
// so listeners can be attached before the open event can fire.
func WithManualConnect() Option {
	return func(o *options) {
		o.manualConnect = true
	}
}

// WithFailConnects makes the next n connection attempts fail with an error
// event followed by an abnormal close.
func WithFailConnects(n int) Option {
	return func(o *options) {
		o.failConnects = max(n, 0)
	}
}

// WithID overrides the generated socket ID.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithLogger sets the logger for state transitions and listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

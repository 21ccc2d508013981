package harness

import "errors"

// Common errors for the harness package.
var (
	// ErrNotSetup is returned by operations that need a socket before Setup.
	ErrNotSetup = errors.New("harness not set up")
	// ErrConnectionTimeout is returned when the socket does not connect in time.
	ErrConnectionTimeout = errors.New("connection timeout")
	// ErrReconnectFailed is returned when a reconnect attempt ends disconnected.
	ErrReconnectFailed = errors.New("reconnect failed")
	// ErrRoundTripTimeout is returned when no echo arrives in time.
	ErrRoundTripTimeout = errors.New("round trip timeout")
)

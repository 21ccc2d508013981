package socket

import "errors"

// Common errors for the socket package.
var (
	// ErrNotOpen is returned by Send and SimulateMessage unless the socket is OPEN.
	ErrNotOpen = errors.New("websocket is not open")
	// ErrConnectFailed is carried by the error event of a simulated connection failure.
	ErrConnectFailed = errors.New("websocket connection failed")
	// ErrSimulated is used by SimulateError when no error is given.
	ErrSimulated = errors.New("simulated websocket error")
	// ErrUnsupportedPayload indicates a payload that cannot be encoded.
	ErrUnsupportedPayload = errors.New("unsupported payload")
)

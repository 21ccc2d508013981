package mockserver

import "errors"

// Common errors for the mockserver package.
var (
	// ErrServerClosed indicates the server was closed.
	ErrServerClosed = errors.New("mock server closed")
	// ErrServerNotStarted indicates Start has not been called.
	ErrServerNotStarted = errors.New("mock server not started")
	// ErrConnectionClosed indicates the connection is closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrConnectionNotFound indicates the connection was not found.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrInvalidMatcherType indicates an invalid matcher type.
	ErrInvalidMatcherType = errors.New("invalid matcher type")
	// ErrInvalidResponseValue indicates an invalid response value type.
	ErrInvalidResponseValue = errors.New("invalid response value")
	// ErrUnknownResponseType indicates an unknown response type.
	ErrUnknownResponseType = errors.New("unknown response type")
)

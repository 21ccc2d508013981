package socket

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReadyState is the lifecycle stage of a socket, numbered as in the browser API.
type ReadyState int

const (
	Connecting ReadyState = 0
	Open       ReadyState = 1
	Closing    ReadyState = 2
	Closed     ReadyState = 3
)

// String returns the browser constant name.
func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

// MessageType represents the type of WebSocket message.
type MessageType int

const (
	// MessageText indicates a UTF-8 encoded text message.
	MessageText MessageType = 1
	// MessageBinary indicates a binary message.
	MessageBinary MessageType = 2
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// CloseCode represents a WebSocket close status code per RFC 6455.
type CloseCode int

const (
	CloseNormalClosure    CloseCode = 1000
	CloseGoingAway        CloseCode = 1001
	CloseProtocolError    CloseCode = 1002
	CloseUnsupportedData  CloseCode = 1003
	CloseNoStatusReceived CloseCode = 1005
	// CloseAbnormalClosure is never sent on the wire; it reports a connection
	// that dropped without a close frame.
	CloseAbnormalClosure CloseCode = 1006
	CloseInvalidPayload  CloseCode = 1007
	ClosePolicyViolation CloseCode = 1008
	CloseMessageTooBig   CloseCode = 1009
	CloseInternalError   CloseCode = 1011
	CloseServiceRestart  CloseCode = 1012
	CloseTryAgainLater   CloseCode = 1013
)

// String returns a human-readable description of the close code.
func (c CloseCode) String() string {
	switch c {
	case CloseNormalClosure:
		return "normal closure"
	case CloseGoingAway:
		return "going away"
	case CloseProtocolError:
		return "protocol error"
	case CloseUnsupportedData:
		return "unsupported data"
	case CloseNoStatusReceived:
		return "no status received"
	case CloseAbnormalClosure:
		return "abnormal closure"
	case CloseInvalidPayload:
		return "invalid payload"
	case ClosePolicyViolation:
		return "policy violation"
	case CloseMessageTooBig:
		return "message too big"
	case CloseInternalError:
		return "internal error"
	case CloseServiceRestart:
		return "service restart"
	case CloseTryAgainLater:
		return "try again later"
	default:
		return "unknown"
	}
}

// EventType names the four socket events.
type EventType string

const (
	EventOpen    EventType = "open"
	EventMessage EventType = "message"
	EventClose   EventType = "close"
	EventError   EventType = "error"
)

// Event is what listeners receive. Fields beyond Type, Target and Timestamp
// are only set for the event types noted on them.
type Event struct {
	Type      EventType
	Target    string // ID of the socket that dispatched the event
	Timestamp time.Time

	// message
	MessageType MessageType
	Data        []byte

	// close
	Code     CloseCode
	Reason   string
	WasClean bool

	// error
	Err error
}

// Text returns the message payload as a string.
func (e Event) Text() string {
	return string(e.Data)
}

// JSON decodes the message payload into v.
func (e Event) JSON(v any) error {
	return json.Unmarshal(e.Data, v)
}

// ErrorPolicy decides what SimulateError does besides dispatching the error event.
type ErrorPolicy int

const (
	// ErrorPolicyNotify only dispatches the error event; the ready state is unchanged.
	ErrorPolicyNotify ErrorPolicy = iota
	// ErrorPolicyClose also forces the socket to CLOSED and dispatches a close
	// event with CloseAbnormalClosure, the way browsers treat fatal errors.
	ErrorPolicyClose
)

// String returns the config name of the policy.
func (p ErrorPolicy) String() string {
	if p == ErrorPolicyClose {
		return "close"
	}
	return "notify"
}

// ParseErrorPolicy parses "notify" or "close". Anything else is ErrorPolicyNotify.
func ParseErrorPolicy(s string) ErrorPolicy {
	if s == "close" {
		return ErrorPolicyClose
	}
	return ErrorPolicyNotify
}

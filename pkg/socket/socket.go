package socket

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/wsmock/internal/id"
	"github.com/getmockd/wsmock/pkg/logging"
)

// Conn is a WebSocket as seen by a test: browser-style state and events plus
// hooks to simulate what the remote end does.
type Conn interface {
	ID() string
	URL() string
	Protocol() string
	Protocols() []string
	ReadyState() ReadyState

	// Connect starts the connection attempt of a socket created with
	// WithManualConnect. It is a no-op otherwise.
	Connect() error
	Send(data any) error
	Close(code CloseCode, reason string) error
	SentMessages() [][]byte

	SimulateMessage(data any) error
	SimulateError(err error)
	SimulateReconnect() error

	SetHandler(typ EventType, h Handler)
	AddEventListener(typ EventType, h Handler) ListenerID
	RemoveEventListener(typ EventType, id ListenerID) bool
}

var _ Conn = (*Socket)(nil)

// Socket is a fake WebSocket that never touches the network.
type Socket struct {
	*EventTarget

	id     string
	url    string
	opts   options
	logger *slog.Logger

	mu           sync.Mutex
	state        ReadyState
	gen          uint64 // bumped to invalidate pending timers
	timer        *time.Timer
	started      bool
	failConnects int
	closeCode    CloseCode
	closeReason  string
	sent         [][]byte
	received     int
}

// New creates a socket in CONNECTING. Unless WithManualConnect is given, the
// open event fires after the connection delay.
func New(url string, opts ...Option) *Socket {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	sid := o.id
	if sid == "" {
		sid = id.Socket()
	}
	logger := logging.OrNop(o.logger).With("socket", sid)

	s := &Socket{
		EventTarget:  NewEventTarget(sid, logger),
		id:           sid,
		url:          url,
		opts:         o,
		logger:       logger,
		state:        Connecting,
		failConnects: o.failConnects,
	}
	if !o.manualConnect {
		s.mu.Lock()
		s.startLocked()
		s.mu.Unlock()
	}
	return s
}

// ID returns the socket ID.
func (s *Socket) ID() string { return s.id }

// URL returns the URL the socket was created with.
func (s *Socket) URL() string { return s.url }

// Protocol returns the negotiated subprotocol, or "" before the socket opens.
func (s *Socket) Protocol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Open || len(s.opts.protocols) == 0 {
		return ""
	}
	return s.opts.protocols[0]
}

// Protocols returns the requested subprotocols.
func (s *Socket) Protocols() []string {
	return append([]string(nil), s.opts.protocols...)
}

// ReadyState returns the current ready state.
func (s *Socket) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect starts a manually controlled connection attempt.
func (s *Socket) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Connecting && !s.started {
		s.startLocked()
	}
	return nil
}

func (s *Socket) startLocked() {
	s.started = true
	s.stopTimerLocked()
	g := s.gen
	s.timer = time.AfterFunc(s.opts.connectionDelay, func() { s.completeOpen(g) })
}

func (s *Socket) stopTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Socket) completeOpen(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != Connecting {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.failConnects > 0 {
		s.failConnects--
		s.state = Closed
		s.EventTarget.Enqueue(Event{Type: EventError, Err: ErrConnectFailed})
		s.EventTarget.Enqueue(Event{
			Type:   EventClose,
			Code:   CloseAbnormalClosure,
			Reason: ErrConnectFailed.Error(),
		})
		s.mu.Unlock()
		s.logger.Debug("simulated connection failure", "url", s.url)
		s.Drain()
		return
	}
	s.state = Open
	s.EventTarget.Enqueue(Event{Type: EventOpen})
	s.mu.Unlock()

	s.logger.Debug("socket open", "url", s.url)
	s.Drain()
}

// Send records data as an outgoing message. Strings are text, []byte is
// binary and other values are JSON encoded.
func (s *Socket) Send(data any) error {
	_, b, err := Encode(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Open {
		return fmt.Errorf("%w (state %s)", ErrNotOpen, s.state)
	}
	s.sent = append(s.sent, b)
	return nil
}

// SentMessages returns a copy of everything sent, oldest first.
func (s *Socket) SentMessages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// ReceivedCount returns how many simulated messages were dispatched.
func (s *Socket) ReceivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Close moves the socket to CLOSING and, after the close delay, to CLOSED
// with a clean close event. Closing a CLOSING or CLOSED socket does nothing.
// Closing a CONNECTING socket cancels the pending open.
func (s *Socket) Close(code CloseCode, reason string) error {
	if code == 0 {
		code = CloseNormalClosure
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closing || s.state == Closed {
		return nil
	}
	s.stopTimerLocked()
	s.state = Closing
	s.closeCode = code
	s.closeReason = reason
	g := s.gen
	s.timer = time.AfterFunc(s.opts.closeDelay, func() { s.completeClose(g) })
	return nil
}

func (s *Socket) completeClose(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != Closing {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.finishCloseLocked()
	s.mu.Unlock()

	s.logger.Debug("socket closed")
	s.Drain()
}

func (s *Socket) finishCloseLocked() {
	s.state = Closed
	s.EventTarget.Enqueue(Event{
		Type:     EventClose,
		Code:     s.closeCode,
		Reason:   s.closeReason,
		WasClean: true,
	})
}

// SimulateMessage dispatches a message event as if the server had sent data.
func (s *Socket) SimulateMessage(data any) error {
	mt, b, err := Encode(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.state != Open {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotOpen, st)
	}
	s.received++
	s.EventTarget.Enqueue(Event{Type: EventMessage, MessageType: mt, Data: b})
	s.mu.Unlock()

	s.Drain()
	return nil
}

// SimulateError dispatches an error event. With ErrorPolicyClose the socket
// is also forced to CLOSED and an abnormal close event follows.
func (s *Socket) SimulateError(err error) {
	if err == nil {
		err = ErrSimulated
	}
	s.mu.Lock()
	s.EventTarget.Enqueue(Event{Type: EventError, Err: err})
	if s.opts.errorPolicy == ErrorPolicyClose && s.state != Closed {
		s.stopTimerLocked()
		s.state = Closed
		s.EventTarget.Enqueue(Event{
			Type:   EventClose,
			Code:   CloseAbnormalClosure,
			Reason: err.Error(),
		})
	}
	s.mu.Unlock()

	s.logger.Debug("simulated error", "error", err, "policy", s.opts.errorPolicy.String())
	s.Drain()
}

// SimulateReconnect drops the current connection attempt or session and
// connects again: the socket returns to CONNECTING and a new open event
// follows after the connection delay. A pending close completes first.
func (s *Socket) SimulateReconnect() error {
	s.mu.Lock()
	if s.state == Closing {
		s.finishCloseLocked()
	}
	s.state = Connecting
	s.startLocked()
	s.mu.Unlock()

	s.logger.Debug("simulated reconnect", "url", s.url)
	s.Drain()
	return nil
}

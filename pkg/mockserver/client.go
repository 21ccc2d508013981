package mockserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/getmockd/wsmock/internal/id"
	"github.com/getmockd/wsmock/pkg/logging"
	"github.com/getmockd/wsmock/pkg/socket"
)

const (
	handshakeTimeout = 5 * time.Second
	writeWait        = 5 * time.Second
	closeWait        = time.Second
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientProtocols sets the subprotocols requested during the handshake.
func WithClientProtocols(protocols ...string) ClientOption {
	return func(c *Client) {
		c.protocols = append([]string(nil), protocols...)
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is a socket.Conn backed by a real WebSocket connection to a Server.
// It is always manually connected: nothing happens until Connect.
//
// Simulated server behavior goes through the server: SimulateMessage pushes
// from the server side, SimulateError dispatches an error event and then
// drops the connection, so a close event with CloseAbnormalClosure follows.
type Client struct {
	*socket.EventTarget

	srv       *Server
	id        string
	url       string
	protocols []string
	logger    *slog.Logger

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu          sync.Mutex
	state       socket.ReadyState
	gen         uint64
	conn        *websocket.Conn
	connID      string
	subprotocol string
	closeCode   socket.CloseCode
	closeReason string
	closeTimer  *time.Timer
	sent        [][]byte
}

var _ socket.Conn = (*Client)(nil)

// NewClient creates a client for srv in CONNECTING. A url without a scheme is
// treated as a path on the server.
func NewClient(srv *Server, url string, opts ...ClientOption) *Client {
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = BaseURL + "/" + strings.TrimPrefix(url, "/")
	}
	c := &Client{
		srv:   srv,
		id:    id.Socket(),
		url:   url,
		state: socket.Connecting,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger).With("socket", c.id)
	c.EventTarget = socket.NewEventTarget(c.id, c.logger)
	return c
}

// ID returns the client socket ID.
func (c *Client) ID() string { return c.id }

// URL returns the dialed URL.
func (c *Client) URL() string { return c.url }

// Protocols returns the requested subprotocols.
func (c *Client) Protocols() []string {
	return append([]string(nil), c.protocols...)
}

// Protocol returns the subprotocol the server selected.
func (c *Client) Protocol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subprotocol
}

// ConnectionID returns the server-side ID of the current connection, or ""
// when not connected.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// ReadyState returns the current ready state.
func (c *Client) ReadyState() socket.ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server in the background. The open event fires once the
// handshake completes; a failed dial produces an error and a close event.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != socket.Connecting || c.conn != nil {
		return nil
	}
	c.dialLocked()
	return nil
}

func (c *Client) dialLocked() {
	c.gen++
	gen := c.gen
	go c.dial(gen)
}

func (c *Client) dial(gen uint64) {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.srv.DialContext(ctx)
		},
		Subprotocols:     c.protocols,
		HandshakeTimeout: handshakeTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen || c.state != socket.Connecting {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.state = socket.Closed
		c.EventTarget.Enqueue(socket.Event{Type: socket.EventError, Err: fmt.Errorf("%w: %v", socket.ErrConnectFailed, err)})
		c.EventTarget.Enqueue(socket.Event{
			Type:   socket.EventClose,
			Code:   socket.CloseAbnormalClosure,
			Reason: err.Error(),
		})
		c.mu.Unlock()
		c.logger.Debug("dial failed", "url", c.url, "error", err)
		c.Drain()
		return
	}

	c.conn = conn
	c.connID = resp.Header.Get(HeaderConnectionID)
	c.subprotocol = conn.Subprotocol()
	c.state = socket.Open
	c.EventTarget.Enqueue(socket.Event{Type: socket.EventOpen})
	c.mu.Unlock()

	c.logger.Debug("client connected", "url", c.url, "connection", c.connID)
	go c.readLoop(gen, conn)
	c.Drain()
}

func (c *Client) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, conn, err)
			return
		}

		c.mu.Lock()
		if gen != c.gen || c.state == socket.Closed {
			c.mu.Unlock()
			return
		}
		msgType := socket.MessageText
		if mt == websocket.BinaryMessage {
			msgType = socket.MessageBinary
		}
		c.EventTarget.Enqueue(socket.Event{Type: socket.EventMessage, MessageType: msgType, Data: data})
		c.mu.Unlock()
		c.Drain()
	}
}

func (c *Client) handleReadError(gen uint64, conn *websocket.Conn, err error) {
	defer conn.Close()

	c.mu.Lock()
	if gen != c.gen || c.state == socket.Closed {
		c.mu.Unlock()
		return
	}

	ev := socket.Event{Type: socket.EventClose}
	var ce *websocket.CloseError
	switch {
	case c.state == socket.Closing:
		ev.Code, ev.Reason, ev.WasClean = c.closeCode, c.closeReason, true
	case errors.As(err, &ce):
		ev.Code, ev.Reason = socket.CloseCode(ce.Code), ce.Text
		ev.WasClean = ce.Code != websocket.CloseAbnormalClosure
	default:
		ev.Code, ev.Reason = socket.CloseAbnormalClosure, err.Error()
	}

	c.state = socket.Closed
	c.conn = nil
	c.connID = ""
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
	c.EventTarget.Enqueue(ev)
	c.mu.Unlock()

	c.logger.Debug("client closed", "code", int(ev.Code), "reason", ev.Reason)
	c.Drain()
}

// Send writes data to the server. Strings are text, []byte is binary and
// other values are JSON encoded.
func (c *Client) Send(data any) error {
	msgType, b, err := socket.Encode(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != socket.Open {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", socket.ErrNotOpen, st)
	}
	conn := c.conn
	c.mu.Unlock()

	wsType := websocket.TextMessage
	if msgType == socket.MessageBinary {
		wsType = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(wsType, b)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	c.mu.Lock()
	c.sent = append(c.sent, b)
	c.mu.Unlock()
	return nil
}

// SentMessages returns a copy of everything sent, oldest first.
func (c *Client) SentMessages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Close starts the closing handshake. The close event fires when the server
// answers, or after a short grace period if it does not. Closing a client
// that is still dialing abandons the dial with an abnormal close.
func (c *Client) Close(code socket.CloseCode, reason string) error {
	if code == 0 {
		code = socket.CloseNormalClosure
	}

	c.mu.Lock()
	switch c.state {
	case socket.Closing, socket.Closed:
		c.mu.Unlock()
		return nil
	case socket.Connecting:
		c.gen++
		c.state = socket.Closed
		c.EventTarget.Enqueue(socket.Event{
			Type:   socket.EventClose,
			Code:   socket.CloseAbnormalClosure,
			Reason: reason,
		})
		c.mu.Unlock()
		c.Drain()
		return nil
	}

	c.state = socket.Closing
	c.closeCode = code
	c.closeReason = reason
	conn := c.conn
	c.closeTimer = time.AfterFunc(closeWait, func() { _ = conn.Close() })
	c.mu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(int(code), reason),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	if err != nil {
		// The read loop reports the close once the transport is gone.
		_ = conn.Close()
	}
	return nil
}

// SimulateMessage pushes data from the server to this client.
func (c *Client) SimulateMessage(data any) error {
	c.mu.Lock()
	st, connID := c.state, c.connID
	c.mu.Unlock()
	if st != socket.Open {
		return fmt.Errorf("%w (state %s)", socket.ErrNotOpen, st)
	}
	return c.srv.SendTo(connID, data)
}

// SimulateError dispatches an error event and drops the connection on the
// server side.
func (c *Client) SimulateError(err error) {
	if err == nil {
		err = socket.ErrSimulated
	}
	c.mu.Lock()
	connID := c.connID
	c.EventTarget.Enqueue(socket.Event{Type: socket.EventError, Err: err})
	c.mu.Unlock()
	c.Drain()

	if connID != "" {
		if dropErr := c.srv.Drop(connID); dropErr != nil {
			c.logger.Debug("simulated error: drop failed", "error", dropErr)
		}
	}
}

// SimulateReconnect abandons the current connection without a close event
// and dials again.
func (c *Client) SimulateReconnect() error {
	c.mu.Lock()
	old := c.conn
	c.conn = nil
	c.connID = ""
	c.subprotocol = ""
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
	if c.state == socket.Closing {
		c.EventTarget.Enqueue(socket.Event{
			Type:     socket.EventClose,
			Code:     c.closeCode,
			Reason:   c.closeReason,
			WasClean: true,
		})
	}
	c.state = socket.Connecting
	c.dialLocked()
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	c.Drain()
	return nil
}

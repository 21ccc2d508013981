package mockserver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"

	"github.com/getmockd/wsmock/pkg/socket"
)

// ConnectionInfo describes a server-side connection.
type ConnectionInfo struct {
	ID               string    `json:"id"`
	Path             string    `json:"path"`
	Subprotocol      string    `json:"subprotocol,omitempty"`
	ConnectedAt      time.Time `json:"connectedAt"`
	MessagesSent     int64     `json:"messagesSent"`
	MessagesReceived int64     `json:"messagesReceived"`
}

// conn is the server side of one accepted WebSocket.
type conn struct {
	id          string
	path        string
	ws          *ws.Conn
	subprotocol string
	connectedAt time.Time
	sent        atomic.Int64
	recv        atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	sendMu sync.RWMutex // excludes Send and Ping while Close runs
	closed atomic.Bool
}

func newConn(id, path string, wsConn *ws.Conn) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		id:          id,
		path:        path,
		ws:          wsConn,
		subprotocol: wsConn.Subprotocol(),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *conn) send(msgType socket.MessageType, data []byte) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	wsType := ws.MessageText
	if msgType == socket.MessageBinary {
		wsType = ws.MessageBinary
	}
	if err := c.ws.Write(c.ctx, wsType, data); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

func (c *conn) read() (socket.MessageType, []byte, error) {
	if c.closed.Load() {
		return 0, nil, ErrConnectionClosed
	}
	wsType, data, err := c.ws.Read(c.ctx)
	if err != nil {
		return 0, nil, err
	}
	c.recv.Add(1)
	if wsType == ws.MessageBinary {
		return socket.MessageBinary, data, nil
	}
	return socket.MessageText, data, nil
}

func (c *conn) ping(ctx context.Context) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.ws.Ping(ctx)
}

// close performs the closing handshake.
func (c *conn) close(code socket.CloseCode, reason string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed.Swap(true) {
		return ErrConnectionClosed
	}
	err := c.ws.Close(ws.StatusCode(code), reason)
	c.cancel()
	return err
}

// drop tears down the transport without a close frame. The peer sees an
// abnormal closure.
func (c *conn) drop() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed.Swap(true) {
		return ErrConnectionClosed
	}
	c.cancel()
	return c.ws.CloseNow()
}

func (c *conn) info() ConnectionInfo {
	return ConnectionInfo{
		ID:               c.id,
		Path:             c.path,
		Subprotocol:      c.subprotocol,
		ConnectedAt:      c.connectedAt,
		MessagesSent:     c.sent.Load(),
		MessagesReceived: c.recv.Load(),
	}
}

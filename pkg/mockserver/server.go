package mockserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
	"google.golang.org/grpc/test/bufconn"

	"github.com/getmockd/wsmock/internal/id"
	"github.com/getmockd/wsmock/pkg/logging"
	"github.com/getmockd/wsmock/pkg/socket"
)

const (
	// BaseURL is the address clients dial. The host is never resolved.
	BaseURL = "ws://wsmock.bufconn"

	// HeaderConnectionID carries the server-side connection ID in the
	// handshake response.
	HeaderConnectionID = "X-Wsmock-Connection"

	defaultBufSize    = 256 * 1024
	defaultPingWait   = 5 * time.Second
	shutdownTimeout   = 2 * time.Second
	defaultMaxMsgSize = 1 << 20
)

// Received is a message the server read from a client.
type Received struct {
	ConnectionID string             `json:"connectionId"`
	Type         socket.MessageType `json:"type"`
	Data         []byte             `json:"data"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Option configures a Server.
type Option func(*Server)

// WithMatchers sets the auto-response matchers, tried in order.
func WithMatchers(matchers ...*Matcher) Option {
	return func(s *Server) {
		s.matchers = append(s.matchers, matchers...)
	}
}

// WithEcho sends unmatched messages back to their sender.
func WithEcho(enabled bool) Option {
	return func(s *Server) {
		s.echo = enabled
	}
}

// WithHeartbeat pings every connection at the given interval. A failed ping
// closes the connection with CloseGoingAway.
func WithHeartbeat(interval time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = interval
	}
}

// WithSubprotocols restricts the subprotocols the server accepts. By default
// the first protocol the client asks for is accepted.
func WithSubprotocols(protocols ...string) Option {
	return func(s *Server) {
		s.subprotocols = append([]string(nil), protocols...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is an in-memory WebSocket server.
type Server struct {
	matchers     []*Matcher
	echo         bool
	heartbeat    time.Duration
	subprotocols []string
	logger       *slog.Logger

	mu       sync.RWMutex
	lis      *bufconn.Listener
	httpSrv  *http.Server
	conns    map[string]*conn
	received []Received
	started  bool
	closed   bool
	served   chan struct{}

	pings atomic.Int64
}

// New creates a server. Call Start before dialing it.
func New(opts ...Option) *Server {
	s := &Server{conns: make(map[string]*conn)}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Component(s.logger, "mockserver")
	return s
}

// Start begins serving. Starting a running server does nothing.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.started {
		return nil
	}

	s.lis = bufconn.Listen(defaultBufSize)
	s.httpSrv = &http.Server{
		Handler:           http.HandlerFunc(s.handleUpgrade),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.served = make(chan struct{})
	s.started = true

	go func(srv *http.Server, lis net.Listener, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Debug("mock server stopped serving", "error", err)
		}
	}(s.httpSrv, s.lis, s.served)

	s.logger.Debug("mock server started", "url", BaseURL)
	return nil
}

// URL returns the base URL clients dial.
func (s *Server) URL() string {
	return BaseURL
}

// DialContext opens a raw in-memory connection to the server.
func (s *Server) DialContext(ctx context.Context) (net.Conn, error) {
	s.mu.RLock()
	lis, started, closed := s.lis, s.started, s.closed
	s.mu.RUnlock()

	switch {
	case closed:
		return nil, ErrServerClosed
	case !started:
		return nil, ErrServerNotStarted
	}
	return lis.DialContext(ctx)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var clientProtocols []string
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			clientProtocols = append(clientProtocols, strings.TrimSpace(p))
		}
	}
	accepted := s.subprotocols
	if len(accepted) == 0 && len(clientProtocols) > 0 {
		accepted = clientProtocols[:1]
	}

	cid := id.Connection()
	w.Header().Set(HeaderConnectionID, cid)

	wsConn, err := ws.Accept(w, r, &ws.AcceptOptions{
		Subprotocols:       accepted,
		InsecureSkipVerify: true,
		CompressionMode:    ws.CompressionDisabled,
	})
	if err != nil {
		s.logger.Debug("websocket accept failed", "error", err)
		return
	}
	wsConn.SetReadLimit(defaultMaxMsgSize)

	c := newConn(cid, r.URL.Path, wsConn)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = c.close(socket.CloseGoingAway, "server closed")
		return
	}
	s.conns[cid] = c
	s.mu.Unlock()

	s.logger.Debug("connection accepted", "connection", cid, "path", c.path, "subprotocol", c.subprotocol)
	go s.handleConnection(c)
}

func (s *Server) handleConnection(c *conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		_ = c.close(socket.CloseNormalClosure, "")
		s.logger.Debug("connection closed", "connection", c.id)
	}()

	if s.heartbeat > 0 {
		hbCtx, cancel := context.WithCancel(c.ctx)
		defer cancel()
		go s.runHeartbeat(hbCtx, c)
	}

	for {
		msgType, data, err := c.read()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.received = append(s.received, Received{
			ConnectionID: c.id,
			Type:         msgType,
			Data:         data,
			Timestamp:    time.Now(),
		})
		s.mu.Unlock()

		s.handleMessage(c, msgType, data)
	}
}

func (s *Server) handleMessage(c *conn, msgType socket.MessageType, data []byte) {
	for _, m := range s.matchers {
		if !m.Match(msgType, data) {
			continue
		}
		if resp := m.Response(); resp != nil {
			s.sendResponse(c, resp)
		}
		return
	}

	if s.echo {
		if err := c.send(msgType, data); err != nil {
			s.logger.Debug("echo failed", "connection", c.id, "error", err)
		}
	}
}

func (s *Server) sendResponse(c *conn, resp *Response) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-c.ctx.Done():
			return
		}
	}
	data, msgType, err := resp.Data()
	if err != nil {
		s.logger.Warn("invalid matcher response", "error", err)
		return
	}
	if err := c.send(msgType, data); err != nil {
		s.logger.Debug("response failed", "connection", c.id, "error", err)
	}
}

func (s *Server) runHeartbeat(ctx context.Context, c *conn) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, defaultPingWait)
			err := c.ping(pingCtx)
			cancel()
			if err != nil {
				_ = c.close(socket.CloseGoingAway, "ping timeout")
				return
			}
			s.pings.Add(1)
		}
	}
}

// Pings returns the number of successful heartbeat pings.
func (s *Server) Pings() int64 {
	return s.pings.Load()
}

// Connections returns the open connections sorted by connect time.
func (s *Server) Connections() []ConnectionInfo {
	s.mu.RLock()
	out := make([]ConnectionInfo, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.info())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Received returns a copy of every message read from clients.
func (s *Server) Received() []Received {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Received, len(s.received))
	copy(out, s.received)
	return out
}

func (s *Server) lookup(connID string) (*conn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrServerClosed
	}
	c, ok := s.conns[connID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}
	return c, nil
}

func (s *Server) snapshot() []*conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// SendTo pushes data to one connection. Payloads follow socket.Encode.
func (s *Server) SendTo(connID string, data any) error {
	msgType, b, err := socket.Encode(data)
	if err != nil {
		return err
	}
	c, err := s.lookup(connID)
	if err != nil {
		return err
	}
	return c.send(msgType, b)
}

// Send pushes data to every connection and returns how many received it.
func (s *Server) Send(data any) (int, error) {
	msgType, b, err := socket.Encode(data)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range s.snapshot() {
		if c.send(msgType, b) == nil {
			n++
		}
	}
	return n, nil
}

// Drop tears down one connection without a close handshake.
func (s *Server) Drop(connID string) error {
	c, err := s.lookup(connID)
	if err != nil {
		return err
	}
	return c.drop()
}

// Error drops every connection abruptly and returns how many were dropped.
func (s *Server) Error() int {
	n := 0
	for _, c := range s.snapshot() {
		if c.drop() == nil {
			n++
		}
	}
	return n
}

// Close closes every connection with CloseGoingAway and stops serving.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.closed = true
	started := s.started
	httpSrv, lis, served := s.httpSrv, s.lis, s.served
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if !started {
		return nil
	}

	var errs []error
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.close(socket.CloseGoingAway, "server closed"); err != nil && !errors.Is(err, ErrConnectionClosed) {
				_ = c.drop()
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if err := lis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close listener: %w", err))
	}
	<-served

	s.logger.Debug("mock server closed", "connections", len(conns))
	return errors.Join(errs...)
}

// Clean closes the server if needed and forgets received messages. It never
// fails and may be called any number of times.
func (s *Server) Clean() {
	if err := s.Close(); err != nil && !errors.Is(err, ErrServerClosed) {
		s.logger.Debug("mock server clean", "error", err)
	}
	s.mu.Lock()
	s.received = nil
	s.mu.Unlock()
}

// Package mockserver runs an in-memory WebSocket server for tests.
//
// The server listens on a grpc bufconn listener, so no port is opened and no
// packets leave the process. Connections are accepted with coder/websocket;
// Client dials with gorilla/websocket through the same listener and
// implements socket.Conn, so the harness can drive it exactly like the fake
// socket.
//
// Incoming messages are answered by the first matching Matcher, or echoed
// when echo mode is on. The server can push messages to one or all
// connections, and can drop connections abruptly to simulate network errors.
//
//	srv := mockserver.New(mockserver.WithEcho(true))
//	if err := srv.Start(); err != nil { ... }
//	defer srv.Clean()
//
//	c := mockserver.NewClient(srv, srv.URL()+"/chat")
//	_ = c.Connect()
package mockserver

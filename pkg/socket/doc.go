// Package socket provides an in-process fake WebSocket with browser semantics.
//
// A Socket starts in CONNECTING, opens after a configurable delay, and
// dispatches open, message, close and error events. Every event goes to the
// property handler (SetHandler / OnOpen / ...) first and then to listeners added
// with AddEventListener, in registration order. A listener that panics is
// recovered and logged; the remaining listeners still run.
//
// Events for one socket are delivered strictly in the order their state
// changes happened. Delivery runs on whichever goroutine triggered the change,
// or on the goroutine already delivering, so listeners may call back into the
// socket without deadlocking.
//
// Usage:
//
//	s := socket.New("ws://localhost/chat", socket.WithManualConnect())
//	s.OnMessage(func(ev socket.Event) { log.Println(ev.Text()) })
//	s.AddEventListener(socket.EventOpen, func(socket.Event) { _ = s.Send("hello") })
//	_ = s.Connect()
//
//	// later, from the test:
//	_ = s.SimulateMessage(map[string]any{"type": "welcome"})
//	s.SimulateError(errors.New("boom"))
//	_ = s.Close(socket.CloseNormalClosure, "done")
//
// Conn is the interface shared by Socket and the mock server client in
// package mockserver; the harness is written against it.
package socket

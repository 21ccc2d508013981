// Package harness orchestrates a socket for tests.
//
// A Manager owns one socket at a time, either the in-process fake from
// package socket or a client of an in-memory mockserver.Server. Setup wires
// the socket's events into a connection state machine, a bounded message
// buffer and a history log of wire events. Event-driven updates are applied
// asynchronously, in order, by a Synchronizer; call Settle (or use the
// Wait/Assert helpers) before asserting on state.
//
//	m := harness.New(harness.WithURL("ws://chat.test"))
//	t.Cleanup(m.Cleanup)
//	require.NoError(t, m.Setup())
//	require.NoError(t, m.WaitForConnection(ctx, time.Second))
//
//	_ = m.SendMessage(map[string]any{"a": 1})
//	_ = m.SimulateIncomingMessage(map[string]any{"a": 1})
//	m.AssertReceivedCount(t, 1)
package harness

package harness

import (
	"context"
	"testing"
	"time"

	"github.com/getmockd/wsmock/pkg/mockserver"
	"github.com/getmockd/wsmock/pkg/socket"
)

func benchManager(b *testing.B, opts ...Option) *Manager {
	b.Helper()
	m := New(append([]Option{WithConnectTimeout(5 * time.Second)}, opts...)...)
	b.Cleanup(m.Cleanup)
	if err := m.Setup(); err != nil {
		b.Fatalf("setup: %v", err)
	}
	if err := m.WaitForConnection(context.Background(), 5*time.Second); err != nil {
		b.Fatalf("connect: %v", err)
	}
	return m
}

// BenchmarkFake_RoundTrip measures a send plus a simulated reply on the fake socket.
func BenchmarkFake_RoundTrip(b *testing.B) {
	m := benchManager(b, WithSocketOptions(socket.WithConnectionDelay(0)))
	ctx := context.Background()
	msg := []byte("benchmark message")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.MeasureMessageRoundTrip(ctx, msg); err != nil {
			b.Fatalf("round trip: %v", err)
		}
		m.FlushMessages()
	}
}

// BenchmarkMockServer_EchoLatency measures a round trip through the in-memory server.
func BenchmarkMockServer_EchoLatency(b *testing.B) {
	m := benchManager(b, WithMockServer(true), WithMockServerOptions(mockserver.WithEcho(true)))
	msg := []byte("benchmark message")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		want := len(m.ReceivedMessages()) + 1
		if err := m.SendMessage(msg); err != nil {
			b.Fatalf("send: %v", err)
		}
		for len(m.ReceivedMessages()) < want {
			time.Sleep(10 * time.Microsecond)
		}
		m.FlushMessages()
	}
}

// BenchmarkSetup measures connection establishment on the fake socket.
func BenchmarkSetup(b *testing.B) {
	m := New(WithSocketOptions(socket.WithConnectionDelay(0)))
	defer m.Cleanup()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.MeasureConnectionTime(ctx); err != nil {
			b.Fatalf("connect: %v", err)
		}
	}
}

// Package buffer provides a bounded, ordered record of messages sent and
// received through a simulated socket.
package buffer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getmockd/wsmock/pkg/metrics"
)

// DefaultMaxSize is the capacity used when New is given a non-positive size.
const DefaultMaxSize = 1000

// ErrBufferFull is returned by Push when the buffer is at capacity.
var ErrBufferFull = errors.New("message buffer full")

// Direction tells whether a message was sent by the client or received from the server.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Message is one buffered payload.
type Message struct {
	Direction Direction `json:"type"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Data)
}

// Buffer is a bounded FIFO of messages. Insertion order is preserved.
// It is safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	messages []Message
	maxSize  int
}

// New creates a buffer holding at most maxSize messages.
func New(maxSize int) *Buffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Buffer{maxSize: maxSize}
}

// Add appends msg. It returns false without inserting when the buffer is full,
// so callers can retry after a Flush or drop deliberately.
func (b *Buffer) Add(msg Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.messages) >= b.maxSize {
		metrics.IncCounter(metrics.BufferOverflowsTotal)
		return false
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.Data = append([]byte(nil), msg.Data...)
	b.messages = append(b.messages, msg)
	return true
}

// AddSent records an outbound payload.
func (b *Buffer) AddSent(data []byte) bool {
	return b.Add(Message{Direction: Sent, Data: data})
}

// AddReceived records an inbound payload.
func (b *Buffer) AddReceived(data []byte) bool {
	return b.Add(Message{Direction: Received, Data: data})
}

// Push is the strict form of Add: it returns ErrBufferFull instead of false.
func (b *Buffer) Push(msg Message) error {
	if !b.Add(msg) {
		return fmt.Errorf("%w: capacity %d", ErrBufferFull, b.maxSize)
	}
	return nil
}

// Flush removes and returns every buffered message in insertion order.
// A second Flush with no intervening Add returns an empty slice.
func (b *Buffer) Flush() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.messages
	b.messages = nil
	if out == nil {
		return []Message{}
	}
	return out
}

// Peek returns a copy of the buffered messages without removing them.
func (b *Buffer) Peek() []Message {
	return b.filter("")
}

// Sent returns a copy of the outbound messages.
func (b *Buffer) Sent() []Message {
	return b.filter(Sent)
}

// Received returns a copy of the inbound messages.
func (b *Buffer) Received() []Message {
	return b.filter(Received)
}

// CountReceived returns the number of inbound messages currently buffered.
func (b *Buffer) CountReceived() int {
	return b.count(Received)
}

// CountSent returns the number of outbound messages currently buffered.
func (b *Buffer) CountSent() int {
	return b.count(Sent)
}

func (b *Buffer) filter(dir Direction) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Message, 0, len(b.messages))
	for _, m := range b.messages {
		if dir != "" && m.Direction != dir {
			continue
		}
		m.Data = append([]byte(nil), m.Data...)
		out = append(out, m)
	}
	return out
}

func (b *Buffer) count(dir Direction) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, m := range b.messages {
		if m.Direction == dir {
			n++
		}
	}
	return n
}

// Size returns the number of buffered messages.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// MaxSize returns the capacity.
func (b *Buffer) MaxSize() int {
	return b.maxSize
}

// Clear discards every buffered message.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

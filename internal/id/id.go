// Package id provides unique identifier generation utilities.
// This is the canonical source for ID generation across the codebase.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"sync/atomic"

	"github.com/google/uuid"
)

var socketCounter atomic.Uint64

// UUID generates a random UUID v4 string.
func UUID() string {
	return uuid.NewString()
}

// Short generates a short random hex ID (16 characters).
// Suitable for user-facing IDs where brevity matters.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Socket returns an identifier for a fake or mock-server socket.
// The format is "sock-{counter}-{uuid}" so IDs sort by creation order within a process.
func Socket() string {
	n := socketCounter.Add(1)
	return "sock-" + hex.EncodeToString([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}) + "-" + uuid.NewString()
}

// Connection returns an identifier for a server-side mock connection.
func Connection() string {
	return "conn-" + Short()
}

// IsSocketID reports whether s looks like an ID produced by Socket.
func IsSocketID(s string) bool {
	const prefix = "sock-"
	if len(s) != len(prefix)+8+1+36 || s[:len(prefix)] != prefix {
		return false
	}
	if _, err := hex.DecodeString(s[len(prefix) : len(prefix)+8]); err != nil {
		return false
	}
	_, err := uuid.Parse(s[len(prefix)+9:])
	return err == nil
}

// Package id provides unique identifier generation utilities.
//
// It provides several ID formats for different use cases:
//
//   - UUID: Standard UUID v4 (random), backed by github.com/google/uuid
//   - Short: 16-character hex IDs for user-facing contexts where brevity matters
//   - Socket: creation-ordered IDs for fake sockets and mock-server clients
//   - Connection: IDs for server-side connections of the in-memory mock server
//
// All random components use crypto/rand.
package id

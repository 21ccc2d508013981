package config

import (
	"fmt"
	"strings"

	"github.com/getmockd/wsmock/pkg/mockserver"
)

// ValidationError is a single invalid value.
type ValidationError struct {
	Path    string // e.g. "backoff.multiplier"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationResult collects every problem found by Validate.
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message.
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return "invalid configuration:\n  " + strings.Join(msgs, "\n  ")
}

func (r *ValidationResult) add(path, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the configuration. It returns a *ValidationResult listing
// every problem, or nil.
func (c *Config) Validate() error {
	r := &ValidationResult{}

	if c.Socket.ConnectionDelay < 0 {
		r.add("socket.connectionDelay", "must not be negative")
	}
	if c.Socket.CloseDelay < 0 {
		r.add("socket.closeDelay", "must not be negative")
	}
	switch c.Socket.ErrorPolicy {
	case "", "notify", "close":
	default:
		r.add("socket.errorPolicy", "must be notify or close, got %q", c.Socket.ErrorPolicy)
	}
	if c.Socket.FailConnects < 0 {
		r.add("socket.failConnects", "must not be negative")
	}

	if c.Buffer.MaxSize < 0 {
		r.add("buffer.maxSize", "must not be negative")
	}

	if c.Heartbeat.Enabled && c.Heartbeat.Interval <= 0 {
		r.add("heartbeat.interval", "must be positive when heartbeat is enabled")
	}

	if c.Backoff.BaseDelay <= 0 {
		r.add("backoff.baseDelay", "must be positive")
	}
	if c.Backoff.Multiplier < 1 {
		r.add("backoff.multiplier", "must be at least 1, got %g", c.Backoff.Multiplier)
	}
	if c.Backoff.MaxDelay > 0 && c.Backoff.MaxDelay < c.Backoff.BaseDelay {
		r.add("backoff.maxDelay", "must not be below baseDelay")
	}
	if c.Backoff.MaxAttempts < 0 {
		r.add("backoff.maxAttempts", "must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		r.add("log.level", "unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		r.add("log.format", "unknown format %q", c.Log.Format)
	}

	if c.MockServer.Heartbeat < 0 {
		r.add("mockServer.heartbeat", "must not be negative")
	}
	if _, err := mockserver.CompileMatchers(c.MockServer.Matchers); err != nil {
		r.add("mockServer.matchers", "%v", err)
	}

	if r.IsValid() {
		return nil
	}
	return r
}

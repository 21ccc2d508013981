package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type envBinding struct {
	name string
	key  string
	set  func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"WSMOCK_URL", "socket.url", func(c *Config, v string) error {
		c.Socket.URL = v
		return nil
	}},
	{"WSMOCK_PROTOCOLS", "socket.protocols", func(c *Config, v string) error {
		c.Socket.Protocols = splitList(v)
		return nil
	}},
	{"WSMOCK_CONNECTION_DELAY", "socket.connectionDelay", durationSetter(func(c *Config) *Duration { return &c.Socket.ConnectionDelay })},
	{"WSMOCK_CLOSE_DELAY", "socket.closeDelay", durationSetter(func(c *Config) *Duration { return &c.Socket.CloseDelay })},
	{"WSMOCK_ERROR_POLICY", "socket.errorPolicy", func(c *Config, v string) error {
		c.Socket.ErrorPolicy = strings.ToLower(v)
		return nil
	}},
	{"WSMOCK_FAIL_CONNECTS", "socket.failConnects", intSetter(func(c *Config) *int { return &c.Socket.FailConnects })},
	{"WSMOCK_BUFFER_SIZE", "buffer.maxSize", intSetter(func(c *Config) *int { return &c.Buffer.MaxSize })},
	{"WSMOCK_HEARTBEAT", "heartbeat.enabled", boolSetter(func(c *Config) *bool { return &c.Heartbeat.Enabled })},
	{"WSMOCK_HEARTBEAT_INTERVAL", "heartbeat.interval", durationSetter(func(c *Config) *Duration { return &c.Heartbeat.Interval })},
	{"WSMOCK_BACKOFF_BASE", "backoff.baseDelay", durationSetter(func(c *Config) *Duration { return &c.Backoff.BaseDelay })},
	{"WSMOCK_BACKOFF_MULTIPLIER", "backoff.multiplier", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Backoff.Multiplier = f
		return nil
	}},
	{"WSMOCK_BACKOFF_MAX", "backoff.maxDelay", durationSetter(func(c *Config) *Duration { return &c.Backoff.MaxDelay })},
	{"WSMOCK_BACKOFF_ATTEMPTS", "backoff.maxAttempts", intSetter(func(c *Config) *int { return &c.Backoff.MaxAttempts })},
	{"WSMOCK_BACKOFF_JITTER", "backoff.jitter", boolSetter(func(c *Config) *bool { return &c.Backoff.Jitter })},
	{"WSMOCK_LOG_LEVEL", "log.level", func(c *Config, v string) error {
		c.Log.Level = strings.ToLower(v)
		return nil
	}},
	{"WSMOCK_LOG_FORMAT", "log.format", func(c *Config, v string) error {
		c.Log.Format = strings.ToLower(v)
		return nil
	}},
	{"WSMOCK_MOCK_SERVER", "mockServer.enabled", boolSetter(func(c *Config) *bool { return &c.MockServer.Enabled })},
	{"WSMOCK_MOCK_SERVER_ECHO", "mockServer.echo", boolSetter(func(c *Config) *bool { return &c.MockServer.Echo })},
}

// EnvNames returns the supported environment variables with their keys.
func EnvNames() map[string]string {
	out := make(map[string]string, len(envBindings))
	for _, b := range envBindings {
		out[b.name] = b.key
	}
	return out
}

// ApplyEnv overlays WSMOCK_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	return c.ApplyEnvFrom(os.LookupEnv)
}

// ApplyEnvFrom overlays variables found by lookup. Empty values are ignored.
// Every malformed value is reported; valid ones are still applied.
func (c *Config) ApplyEnvFrom(lookup func(string) (string, bool)) error {
	var errs []error
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidEnv, b.name, v, err))
			continue
		}
		c.SetSource(b.key, SourceEnv)
	}
	return errors.Join(errs...)
}

func durationSetter(field func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			*field(c) = true
		case "false", "0", "no", "off":
			*field(c) = false
		default:
			return fmt.Errorf("not a boolean")
		}
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

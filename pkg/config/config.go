package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/wsmock/pkg/backoff"
	"github.com/getmockd/wsmock/pkg/buffer"
	"github.com/getmockd/wsmock/pkg/heartbeat"
	"github.com/getmockd/wsmock/pkg/logging"
	"github.com/getmockd/wsmock/pkg/mockserver"
	"github.com/getmockd/wsmock/pkg/socket"
)

// Value sources, lowest precedence first.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// DefaultURL is the URL given to sockets when none is configured.
const DefaultURL = "ws://localhost:8080/ws"

// Duration is a time.Duration that reads "10ms" style strings or integer
// milliseconds from YAML and writes duration strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	v, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ParseDuration parses a duration string or integer milliseconds.
func ParseDuration(s string) (Duration, error) {
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(ms) * time.Millisecond), nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(parsed), nil
}

// Config is the full wsmock configuration.
type Config struct {
	Socket     SocketConfig     `yaml:"socket"`
	Buffer     BufferConfig     `yaml:"buffer"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Backoff    BackoffConfig    `yaml:"backoff"`
	Log        LogConfig        `yaml:"log"`
	MockServer MockServerConfig `yaml:"mockServer"`

	// Sources maps dotted keys such as "socket.connectionDelay" to the layer
	// that last set them.
	Sources map[string]string `yaml:"-"`
}

// SocketConfig configures the fake socket.
type SocketConfig struct {
	URL             string   `yaml:"url"`
	Protocols       []string `yaml:"protocols,omitempty"`
	ConnectionDelay Duration `yaml:"connectionDelay"`
	CloseDelay      Duration `yaml:"closeDelay"`
	// ErrorPolicy is "notify" or "close".
	ErrorPolicy  string `yaml:"errorPolicy"`
	FailConnects int    `yaml:"failConnects,omitempty"`
}

// BufferConfig configures the message buffer.
type BufferConfig struct {
	MaxSize int `yaml:"maxSize"`
}

// HeartbeatConfig configures harness heartbeats.
type HeartbeatConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

// BackoffConfig configures reconnect backoff.
type BackoffConfig struct {
	BaseDelay   Duration `yaml:"baseDelay"`
	Multiplier  float64  `yaml:"multiplier"`
	MaxDelay    Duration `yaml:"maxDelay"`
	MaxAttempts int      `yaml:"maxAttempts"`
	Jitter      bool     `yaml:"jitter"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MockServerConfig configures the in-memory mock server mode.
type MockServerConfig struct {
	Enabled   bool                       `yaml:"enabled"`
	Echo      bool                       `yaml:"echo"`
	Heartbeat Duration                   `yaml:"heartbeat,omitempty"`
	Matchers  []mockserver.MatcherConfig `yaml:"matchers,omitempty"`
}

// Default returns the default configuration with every source set to default.
func Default() *Config {
	hb := heartbeat.DefaultConfig()
	bo := backoff.Default()
	cfg := &Config{
		Socket: SocketConfig{
			URL:             DefaultURL,
			ConnectionDelay: Duration(socket.DefaultConnectionDelay),
			CloseDelay:      Duration(socket.DefaultCloseDelay),
			ErrorPolicy:     socket.ErrorPolicyNotify.String(),
		},
		Buffer: BufferConfig{MaxSize: buffer.DefaultMaxSize},
		Heartbeat: HeartbeatConfig{
			Enabled:  hb.Enabled,
			Interval: Duration(hb.Interval),
		},
		Backoff: BackoffConfig{
			BaseDelay:   Duration(bo.BaseDelay),
			Multiplier:  bo.Multiplier,
			MaxDelay:    Duration(bo.MaxDelay),
			MaxAttempts: 5,
		},
		Log: LogConfig{Level: "warn", Format: string(logging.FormatText)},
	}
	cfg.Sources = make(map[string]string, len(Keys))
	for _, k := range Keys {
		cfg.Sources[k] = SourceDefault
	}
	return cfg
}

// Keys lists the tracked configuration keys in display order.
var Keys = []string{
	"socket.url",
	"socket.protocols",
	"socket.connectionDelay",
	"socket.closeDelay",
	"socket.errorPolicy",
	"socket.failConnects",
	"buffer.maxSize",
	"heartbeat.enabled",
	"heartbeat.interval",
	"backoff.baseDelay",
	"backoff.multiplier",
	"backoff.maxDelay",
	"backoff.maxAttempts",
	"backoff.jitter",
	"log.level",
	"log.format",
	"mockServer.enabled",
	"mockServer.echo",
	"mockServer.heartbeat",
	"mockServer.matchers",
}

// SetSource records where key was last set.
func (c *Config) SetSource(key, source string) {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[key] = source
}

// Source returns where key was last set, or SourceDefault.
func (c *Config) Source(key string) string {
	if s, ok := c.Sources[key]; ok {
		return s
	}
	return SourceDefault
}

// SocketOptions converts the socket section to socket options.
func (c *Config) SocketOptions() []socket.Option {
	opts := []socket.Option{
		socket.WithConnectionDelay(c.Socket.ConnectionDelay.Duration()),
		socket.WithCloseDelay(c.Socket.CloseDelay.Duration()),
		socket.WithErrorPolicy(socket.ParseErrorPolicy(c.Socket.ErrorPolicy)),
	}
	if len(c.Socket.Protocols) > 0 {
		opts = append(opts, socket.WithProtocols(c.Socket.Protocols...))
	}
	if c.Socket.FailConnects > 0 {
		opts = append(opts, socket.WithFailConnects(c.Socket.FailConnects))
	}
	return opts
}

// HeartbeatConfig converts the heartbeat section.
func (c *Config) HeartbeatConfig() heartbeat.Config {
	return heartbeat.Config{
		Enabled:  c.Heartbeat.Enabled,
		Interval: c.Heartbeat.Interval.Duration(),
	}
}

// BackoffCalculator converts the backoff section.
func (c *Config) BackoffCalculator() backoff.ExponentialBackoff {
	return backoff.ExponentialBackoff{
		BaseDelay:  c.Backoff.BaseDelay.Duration(),
		Multiplier: c.Backoff.Multiplier,
		MaxDelay:   c.Backoff.MaxDelay.Duration(),
	}
}

// BackoffPolicy builds a retry policy from the backoff section.
func (c *Config) BackoffPolicy() *backoff.Policy {
	return backoff.NewPolicy(c.BackoffCalculator(),
		backoff.WithMaxAttempts(c.Backoff.MaxAttempts),
		backoff.WithJitter(c.Backoff.Jitter))
}

// LoggingConfig converts the log section.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Log.Level)
	cfg.Format = logging.ParseFormat(c.Log.Format)
	return cfg
}

// MockServerOptions builds mock server options, compiling the matchers.
func (c *Config) MockServerOptions() ([]mockserver.Option, error) {
	matchers, err := mockserver.CompileMatchers(c.MockServer.Matchers)
	if err != nil {
		return nil, err
	}
	opts := []mockserver.Option{mockserver.WithEcho(c.MockServer.Echo)}
	if len(matchers) > 0 {
		opts = append(opts, mockserver.WithMatchers(matchers...))
	}
	if c.MockServer.Heartbeat > 0 {
		opts = append(opts, mockserver.WithHeartbeat(c.MockServer.Heartbeat.Duration()))
	}
	return opts, nil
}

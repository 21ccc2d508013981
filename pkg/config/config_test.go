package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/wsmock/pkg/socket"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wsmock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultURL, cfg.Socket.URL)
	assert.Equal(t, 10*time.Millisecond, cfg.Socket.ConnectionDelay.Duration())
	assert.Equal(t, 5*time.Millisecond, cfg.Socket.CloseDelay.Duration())
	assert.Equal(t, "notify", cfg.Socket.ErrorPolicy)
	assert.Equal(t, 1000, cfg.Buffer.MaxSize)
	assert.True(t, cfg.Heartbeat.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.Interval.Duration())
	assert.Equal(t, time.Second, cfg.Backoff.BaseDelay.Duration())
	assert.Equal(t, 2.0, cfg.Backoff.Multiplier)
	assert.Equal(t, 30*time.Second, cfg.Backoff.MaxDelay.Duration())
	assert.NoError(t, cfg.Validate())

	for _, k := range Keys {
		assert.Equal(t, SourceDefault, cfg.Source(k), k)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"10ms", 10 * time.Millisecond, false},
		{"1.5s", 1500 * time.Millisecond, false},
		{"250", 250 * time.Millisecond, false},
		{"", 0, false},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

// =============================================================================
// File loading
// =============================================================================

func TestLoadFile_OverlaysAndTracksSources(t *testing.T) {
	path := writeFile(t, `
socket:
  url: ws://example.test/chat
  connectionDelay: 25ms
  errorPolicy: close
buffer:
  maxSize: 50
heartbeat:
  interval: 100
mockServer:
  enabled: true
  matchers:
    - match: {type: json, path: $.type, value: ping}
      response: {type: json, value: {type: pong}, delay: 5ms}
`)
	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "ws://example.test/chat", cfg.Socket.URL)
	assert.Equal(t, 25*time.Millisecond, cfg.Socket.ConnectionDelay.Duration())
	assert.Equal(t, 5*time.Millisecond, cfg.Socket.CloseDelay.Duration())
	assert.Equal(t, 50, cfg.Buffer.MaxSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Heartbeat.Interval.Duration())
	assert.True(t, cfg.Heartbeat.Enabled)
	require.Len(t, cfg.MockServer.Matchers, 1)
	assert.Equal(t, 5*time.Millisecond, cfg.MockServer.Matchers[0].Response.Delay)

	assert.Equal(t, SourceFile, cfg.Source("socket.url"))
	assert.Equal(t, SourceFile, cfg.Source("heartbeat.interval"))
	assert.Equal(t, SourceDefault, cfg.Source("socket.closeDelay"))
	assert.Equal(t, SourceDefault, cfg.Source("heartbeat.enabled"))
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Default()

	err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	err = cfg.LoadFile(writeFile(t, "   \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	err = cfg.LoadFile(writeFile(t, "socket: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidYAML)

	err = cfg.LoadFile(writeFile(t, "socket:\n  colour: blue\n"))
	assert.ErrorIs(t, err, ErrInvalidYAML)

	err = cfg.LoadFile(writeFile(t, "socket:\n  connectionDelay: later\n"))
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

// =============================================================================
// Environment
// =============================================================================

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnvFrom(lookupFrom(map[string]string{
		"WSMOCK_URL":              "ws://env.test",
		"WSMOCK_PROTOCOLS":        "v2, v1,",
		"WSMOCK_CONNECTION_DELAY": "1ms",
		"WSMOCK_HEARTBEAT":        "off",
		"WSMOCK_BACKOFF_JITTER":   "yes",
		"WSMOCK_BACKOFF_ATTEMPTS": "9",
		"WSMOCK_LOG_LEVEL":        "DEBUG",
		"WSMOCK_BUFFER_SIZE":      "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "ws://env.test", cfg.Socket.URL)
	assert.Equal(t, []string{"v2", "v1"}, cfg.Socket.Protocols)
	assert.Equal(t, time.Millisecond, cfg.Socket.ConnectionDelay.Duration())
	assert.False(t, cfg.Heartbeat.Enabled)
	assert.True(t, cfg.Backoff.Jitter)
	assert.Equal(t, 9, cfg.Backoff.MaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)

	assert.Equal(t, SourceEnv, cfg.Source("socket.url"))
	assert.Equal(t, SourceEnv, cfg.Source("heartbeat.enabled"))
	assert.Equal(t, SourceDefault, cfg.Source("buffer.maxSize"))
}

func TestApplyEnv_ReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnvFrom(lookupFrom(map[string]string{
		"WSMOCK_BUFFER_SIZE": "lots",
		"WSMOCK_HEARTBEAT":   "maybe",
		"WSMOCK_URL":         "ws://still.applied",
	}))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEnv)
	assert.Contains(t, err.Error(), "WSMOCK_BUFFER_SIZE")
	assert.Contains(t, err.Error(), "WSMOCK_HEARTBEAT")
	assert.Equal(t, "ws://still.applied", cfg.Socket.URL)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "socket:\n  url: ws://file.test\n  closeDelay: 7ms\n")
	t.Setenv("WSMOCK_URL", "ws://env.test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://env.test", cfg.Socket.URL)
	assert.Equal(t, SourceEnv, cfg.Source("socket.url"))
	assert.Equal(t, 7*time.Millisecond, cfg.Socket.CloseDelay.Duration())
	assert.Equal(t, SourceFile, cfg.Source("socket.closeDelay"))
}

// =============================================================================
// Validation and conversion
// =============================================================================

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Socket.ErrorPolicy = "explode"
	cfg.Backoff.Multiplier = 0.5
	cfg.Heartbeat.Interval = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var result *ValidationResult
	require.True(t, errors.As(err, &result))
	paths := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"socket.errorPolicy", "backoff.multiplier", "heartbeat.interval", "log.format"}, paths)
}

func TestValidate_BadMatcher(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Parse([]byte("mockServer:\n  matchers:\n    - match: {type: telepathy}\n")))
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mockServer.matchers")
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Socket.Protocols = []string{"chat"}
	cfg.Socket.ErrorPolicy = "close"
	cfg.Backoff.MaxAttempts = 2

	s := socket.New("ws://x", append(cfg.SocketOptions(), socket.WithManualConnect())...)
	assert.Equal(t, []string{"chat"}, s.Protocols())

	hb := cfg.HeartbeatConfig()
	assert.Equal(t, 30*time.Second, hb.Interval)

	calc := cfg.BackoffCalculator()
	assert.Equal(t, 2*time.Second, calc.CalculateDelay(2))

	p := cfg.BackoffPolicy()
	p.NextBackOff()
	p.NextBackOff()
	assert.Equal(t, time.Duration(-1), p.NextBackOff())

	opts, err := cfg.MockServerOptions()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}

func TestYAMLRoundTripKeepsDurationsReadable(t *testing.T) {
	out, err := Default().YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "connectionDelay: 10ms")

	cfg := Default()
	require.NoError(t, cfg.Parse(out))
	assert.Equal(t, 10*time.Millisecond, cfg.Socket.ConnectionDelay.Duration())
}

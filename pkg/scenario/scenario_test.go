package scenario

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/wsmock/pkg/config"
	"github.com/getmockd/wsmock/pkg/harness"
	"github.com/getmockd/wsmock/pkg/logging"
)

func run(t *testing.T, src string) *Result {
	t.Helper()
	sc, err := Parse([]byte(src))
	require.NoError(t, err)
	res, err := Run(context.Background(), sc,
		WithLogger(logging.NewTestLogger(t)),
		WithStepTimeout(2*time.Second))
	require.NoError(t, err)
	return res
}

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(`
name: basic
socket:
  connectionDelay: 5
  errorPolicy: close
steps:
  - action: connect
  - action: send
    data: hello
  - action: wait
    duration: 10ms
  - action: assert
    expect: len(sent) == 1
`))
	require.NoError(t, err)

	assert.Equal(t, "basic", sc.Name)
	require.Len(t, sc.Steps, 4)
	assert.Equal(t, "hello", sc.Steps[1].Data)
	assert.Equal(t, 10*time.Millisecond, sc.Steps[2].Duration.Duration())
	require.NotNil(t, sc.Socket.ConnectionDelay)
	assert.Equal(t, 5*time.Millisecond, sc.Socket.ConnectionDelay.Duration())
	assert.Equal(t, "assert", sc.Steps[3].Label())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "missing name",
			src:     "steps:\n  - action: connect\n",
			wantErr: "name",
		},
		{
			name:    "no steps",
			src:     "name: x\nsteps: []\n",
			wantErr: "steps",
		},
		{
			name:    "unknown action",
			src:     "name: x\nsteps:\n  - action: teleport\n",
			wantErr: "steps.0",
		},
		{
			name:    "assert without expect",
			src:     "name: x\nsteps:\n  - action: assert\n",
			wantErr: "expect",
		},
		{
			name:    "send without data",
			src:     "name: x\nsteps:\n  - action: send\n",
			wantErr: "data",
		},
		{
			name:    "unknown field",
			src:     "name: x\nretries: 3\nsteps:\n  - action: connect\n",
			wantErr: "retries",
		},
		{
			name:    "bad duration",
			src:     "name: x\nsteps:\n  - action: wait\n    duration: soon\n",
			wantErr: "duration",
		},
		{
			name:    "bad url",
			src:     "name: x\nurl: http://nope\nsteps:\n  - action: connect\n",
			wantErr: "url",
		},
		{
			name:    "bad expression",
			src:     "name: x\nsteps:\n  - action: assert\n    expect: 'state =='\n",
			wantErr: "steps.0",
		},
		{
			name:    "non-boolean expression",
			src:     "name: x\nsteps:\n  - action: assert\n    expect: len(sent)\n",
			wantErr: "steps.0",
		},
		{
			name: "bad matcher regex",
			src: `name: x
mockServer:
  matchers:
    - match: {type: regex, value: "("}
steps:
  - action: connect
`,
			wantErr: "mockServer",
		},
		{
			name:    "not yaml",
			src:     "name: [unclosed",
			wantErr: "invalid scenario",
		},
		{
			name:    "empty",
			src:     "",
			wantErr: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.ErrorIs(t, err, ErrInvalidScenario)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	sc, err := LoadFile(filepath.Join("testdata", "echo.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "send and receive", sc.Name)
	assert.Equal(t, filepath.Join("testdata", "echo.yaml"), sc.Path)

	_, err = LoadFile(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadGlob(t *testing.T) {
	all, err := LoadGlob(filepath.Join("testdata", "**", "*.yaml"))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "send and receive", all[0].Name)
	assert.Equal(t, "mock server auto response", all[1].Name)

	top, err := LoadGlob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	assert.Len(t, top, 1)

	_, err = LoadGlob(filepath.Join("testdata", "*.json"))
	assert.ErrorIs(t, err, ErrNoScenarios)
}

func TestApply(t *testing.T) {
	base := config.Default()
	base.Socket.Protocols = []string{"base"}
	delay := config.Duration(time.Millisecond)
	off := false

	sc := &Scenario{
		URL: "ws://scenario.test",
		Socket: &SocketSettings{
			Protocols:       []string{"v2"},
			ConnectionDelay: &delay,
			ErrorPolicy:     "close",
			FailConnects:    2,
		},
		MockServer: &MockServerSettings{Echo: true},
	}
	cfg := sc.Apply(base)

	assert.Equal(t, "ws://scenario.test", cfg.Socket.URL)
	assert.Equal(t, []string{"v2"}, cfg.Socket.Protocols)
	assert.Equal(t, delay, cfg.Socket.ConnectionDelay)
	assert.Equal(t, base.Socket.CloseDelay, cfg.Socket.CloseDelay)
	assert.Equal(t, "close", cfg.Socket.ErrorPolicy)
	assert.Equal(t, 2, cfg.Socket.FailConnects)
	assert.True(t, cfg.MockServer.Enabled)
	assert.True(t, cfg.MockServer.Echo)

	// The base is untouched.
	assert.Equal(t, []string{"base"}, base.Socket.Protocols)
	assert.Equal(t, config.DefaultURL, base.Socket.URL)

	sc.MockServer.Enabled = &off
	assert.False(t, sc.Apply(base).MockServer.Enabled)
}

func TestRun_Files(t *testing.T) {
	scenarios, err := LoadGlob(filepath.Join("testdata", "**", "*.yaml"))
	require.NoError(t, err)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			res, err := Run(context.Background(), sc, WithLogger(logging.NewTestLogger(t)))
			require.NoError(t, err)
			if failed, ok := res.Failed(); ok {
				t.Fatalf("step %d (%s) failed: %s", failed.Index, failed.Name, failed.Error)
			}
			assert.True(t, res.Passed)
			assert.Len(t, res.Steps, len(sc.Steps))
			assert.Equal(t, sc.Path, res.Path)
		})
	}
}

func TestRun_AssertionFailureStopsRun(t *testing.T) {
	res := run(t, `
name: failing
socket: {connectionDelay: 1ms}
steps:
  - action: connect
  - action: assert
    expect: len(received) == 5
    message: expected five messages
  - action: send
    data: never
`)

	assert.False(t, res.Passed)
	require.Len(t, res.Steps, 2)
	failed, ok := res.Failed()
	require.True(t, ok)
	assert.Equal(t, 1, failed.Index)
	assert.Contains(t, failed.Error, "assertion failed: expected five messages")
	assert.NotContains(t, historyTypes(res), harness.HistorySend)
}

func historyTypes(res *Result) []string {
	var out []string
	for _, e := range res.History {
		out = append(out, e.Type)
	}
	return out
}

func TestRun_ExpectError(t *testing.T) {
	res := run(t, `
name: send too early
socket: {connectionDelay: 1h}
steps:
  - action: send
    data: before setup
    expectError: true
  - action: connect
    timeout: 20ms
    expectError: true
  - action: send
    data: still connecting
    expectError: true
  - action: assert
    expect: '"send_error" in map(history, .type) && state == "connecting"'
`)
	failed, _ := res.Failed()
	require.True(t, res.Passed, failed.Error)
}

func TestRun_ExpectErrorFailsWhenStepSucceeds(t *testing.T) {
	res := run(t, `
name: unexpected success
socket: {connectionDelay: 1ms}
steps:
  - action: connect
    expectError: true
`)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Steps[0].Error, "expected connect to fail")
}

func TestRun_ReconnectWithBackoff(t *testing.T) {
	cfg := config.Default()
	cfg.Backoff.BaseDelay = config.Duration(time.Millisecond)
	cfg.Backoff.MaxDelay = config.Duration(5 * time.Millisecond)

	sc, err := Parse([]byte(`
name: flaky server
socket:
  connectionDelay: 1ms
  failConnects: 2
steps:
  - action: connect
    expectError: true
  - action: reconnect
    maxAttempts: 5
  - action: assert
    expect: state == "connected" && states[len(states)-1] == "connected"
  - action: assert
    expect: len(filter(history, .type == "reconnect")) == 2
`))
	require.NoError(t, err)

	res, err := Run(context.Background(), sc, WithConfig(cfg), WithLogger(logging.NewTestLogger(t)))
	require.NoError(t, err)
	failed, _ := res.Failed()
	require.True(t, res.Passed, failed.Error)
}

func TestRun_ErrorAndReconnect(t *testing.T) {
	res := run(t, `
name: error then recover
socket:
  connectionDelay: 1ms
  closeDelay: 1ms
  errorPolicy: close
steps:
  - action: connect
  - action: error
    error: connection reset
  - action: assert
    expect: state == "disconnected" && any(history, .type == "error" && .error == "connection reset")
  - action: reconnect
    timeout: 1s
  - action: assert
    expect: state == "connected"
`)
	failed, _ := res.Failed()
	require.True(t, res.Passed, failed.Error)
}

func TestRun_Heartbeat(t *testing.T) {
	res := run(t, `
name: heartbeat
socket: {connectionDelay: 1ms}
steps:
  - action: connect
  - action: heartbeat
    key: keepalive
    interval: 10ms
  - action: assert
    expect: beats >= 2 && len(sent) >= 2 && sent[0] contains "ping"
    timeout: 1s
`)
	failed, _ := res.Failed()
	require.True(t, res.Passed, failed.Error)
}

func TestRun_UnknownActionIsRejectedByRun(t *testing.T) {
	sc := &Scenario{Name: "direct", Steps: []Step{{Action: "teleport"}}}
	res, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Steps[0].Error, "unknown action")
}

func TestRun_InvalidExpression(t *testing.T) {
	sc := &Scenario{Name: "direct", Steps: []Step{{Action: ActionAssert, Expect: "state ==="}}}
	_, err := Run(context.Background(), sc)
	assert.ErrorIs(t, err, ErrInvalidScenario)
}

func TestRun_Canceled(t *testing.T) {
	sc, err := Parse([]byte(`
name: long wait
steps:
  - action: wait
    duration: 1h
`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := Run(ctx, sc)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.True(t, strings.Contains(res.Steps[0].Error, "deadline"))
}

package scenario

import (
	"github.com/getmockd/wsmock/pkg/config"
	"github.com/getmockd/wsmock/pkg/mockserver"
)

// Step actions.
const (
	ActionConnect   = "connect"
	ActionSend      = "send"
	ActionReceive   = "receive"
	ActionError     = "error"
	ActionClose     = "close"
	ActionReconnect = "reconnect"
	ActionWait      = "wait"
	ActionSettle    = "settle"
	ActionHeartbeat = "heartbeat"
	ActionAssert    = "assert"
)

// Scenario is one scripted harness run.
type Scenario struct {
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	URL         string              `yaml:"url,omitempty" json:"url,omitempty"`
	MockServer  *MockServerSettings `yaml:"mockServer,omitempty" json:"mockServer,omitempty"`
	Socket      *SocketSettings     `yaml:"socket,omitempty" json:"socket,omitempty"`
	Steps       []Step              `yaml:"steps" json:"steps"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-" json:"-"`
}

// SocketSettings override the socket section of the base configuration.
// Unset fields keep the base value.
type SocketSettings struct {
	URL             string           `yaml:"url,omitempty" json:"url,omitempty"`
	Protocols       []string         `yaml:"protocols,omitempty" json:"protocols,omitempty"`
	ConnectionDelay *config.Duration `yaml:"connectionDelay,omitempty" json:"connectionDelay,omitempty"`
	CloseDelay      *config.Duration `yaml:"closeDelay,omitempty" json:"closeDelay,omitempty"`
	ErrorPolicy     string           `yaml:"errorPolicy,omitempty" json:"errorPolicy,omitempty"`
	FailConnects    int              `yaml:"failConnects,omitempty" json:"failConnects,omitempty"`
}

// MockServerSettings switch the run to the mock server variant unless
// Enabled is explicitly false.
type MockServerSettings struct {
	Enabled   *bool                      `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Echo      bool                       `yaml:"echo,omitempty" json:"echo,omitempty"`
	Heartbeat config.Duration            `yaml:"heartbeat,omitempty" json:"heartbeat,omitempty"`
	Matchers  []mockserver.MatcherConfig `yaml:"matchers,omitempty" json:"matchers,omitempty"`
}

// Step is one action.
type Step struct {
	Action string `yaml:"action" json:"action"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`

	// Data is the payload for send and receive. Strings are sent as text,
	// anything else as JSON.
	Data any `yaml:"data,omitempty" json:"data,omitempty"`
	// Error is the simulated error message.
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`
	Code   int    `yaml:"code,omitempty" json:"code,omitempty"`
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`

	Duration config.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
	Timeout  config.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Interval config.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Key      string          `yaml:"key,omitempty" json:"key,omitempty"`

	// MaxAttempts makes reconnect retry with backoff until connected.
	MaxAttempts int `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`

	Expect  string `yaml:"expect,omitempty" json:"expect,omitempty"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	// ExpectError inverts the step outcome: it passes only if the action fails.
	ExpectError bool `yaml:"expectError,omitempty" json:"expectError,omitempty"`
}

// Label returns the step name, or its action when unnamed.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Action
}

// Apply returns a copy of base with the scenario's overrides applied.
func (sc *Scenario) Apply(base *config.Config) *config.Config {
	cfg := *base
	cfg.Socket.Protocols = append([]string(nil), base.Socket.Protocols...)
	cfg.MockServer.Matchers = append([]mockserver.MatcherConfig(nil), base.MockServer.Matchers...)
	cfg.Sources = nil

	if sc.URL != "" {
		cfg.Socket.URL = sc.URL
	}
	if s := sc.Socket; s != nil {
		if s.URL != "" {
			cfg.Socket.URL = s.URL
		}
		if len(s.Protocols) > 0 {
			cfg.Socket.Protocols = append([]string(nil), s.Protocols...)
		}
		if s.ConnectionDelay != nil {
			cfg.Socket.ConnectionDelay = *s.ConnectionDelay
		}
		if s.CloseDelay != nil {
			cfg.Socket.CloseDelay = *s.CloseDelay
		}
		if s.ErrorPolicy != "" {
			cfg.Socket.ErrorPolicy = s.ErrorPolicy
		}
		if s.FailConnects > 0 {
			cfg.Socket.FailConnects = s.FailConnects
		}
	}
	if ms := sc.MockServer; ms != nil {
		cfg.MockServer = config.MockServerConfig{
			Enabled:   ms.Enabled == nil || *ms.Enabled,
			Echo:      ms.Echo,
			Heartbeat: ms.Heartbeat,
			Matchers:  append([]mockserver.MatcherConfig(nil), ms.Matchers...),
		}
	}
	return &cfg
}

package mockserver

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/wsmock/pkg/socket"
)

// Match types.
const (
	MatchExact    = "exact"
	MatchRegex    = "regex"
	MatchJSON     = "json"
	MatchContains = "contains"
	MatchPrefix   = "prefix"
	MatchSuffix   = "suffix"
)

// MatcherConfig defines configuration for a message matcher.
type MatcherConfig struct {
	Match      *MatchCriteria `yaml:"match" json:"match"`
	Response   *Response      `yaml:"response,omitempty" json:"response,omitempty"`
	NoResponse bool           `yaml:"noResponse,omitempty" json:"noResponse,omitempty"`
}

// MatchCriteria defines how to match a message.
type MatchCriteria struct {
	// Type is one of exact, regex, json, contains, prefix, suffix.
	Type  string `yaml:"type" json:"type"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
	// Path is a JSONPath expression for the json type, e.g. "$.action".
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// MessageType restricts matching to "text" or "binary". Empty matches both.
	MessageType string `yaml:"messageType,omitempty" json:"messageType,omitempty"`
}

// Response is what the server sends back for a matched message.
type Response struct {
	// Type is "text", "binary" (base64 value) or "json".
	Type  string        `yaml:"type" json:"type"`
	Value any           `yaml:"value" json:"value"`
	Delay time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
}

// Data returns the response payload and its message type.
func (r *Response) Data() ([]byte, socket.MessageType, error) {
	switch r.Type {
	case "text", "":
		s, ok := r.Value.(string)
		if !ok {
			return nil, socket.MessageText, ErrInvalidResponseValue
		}
		return []byte(s), socket.MessageText, nil
	case "json":
		data, err := json.Marshal(r.Value)
		if err != nil {
			return nil, socket.MessageText, fmt.Errorf("%w: %v", ErrInvalidResponseValue, err)
		}
		return data, socket.MessageText, nil
	case "binary":
		s, ok := r.Value.(string)
		if !ok {
			return nil, socket.MessageBinary, ErrInvalidResponseValue
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return []byte(s), socket.MessageBinary, nil
		}
		return decoded, socket.MessageBinary, nil
	default:
		return nil, socket.MessageText, ErrUnknownResponseType
	}
}

// Matcher is a compiled message matcher.
type Matcher struct {
	matchType     string
	value         string
	path          jp.Expr
	msgTypeFilter socket.MessageType
	regex         *regexp.Regexp
	response      *Response
	noResponse    bool
}

// NewMatcher compiles a matcher.
func NewMatcher(cfg *MatcherConfig) (*Matcher, error) {
	if cfg == nil || cfg.Match == nil {
		return nil, ErrInvalidMatcherType
	}

	m := &Matcher{
		matchType:  cfg.Match.Type,
		value:      cfg.Match.Value,
		response:   cfg.Response,
		noResponse: cfg.NoResponse,
	}

	switch cfg.Match.MessageType {
	case "text":
		m.msgTypeFilter = socket.MessageText
	case "binary":
		m.msgTypeFilter = socket.MessageBinary
	}

	switch m.matchType {
	case MatchExact, MatchContains, MatchPrefix, MatchSuffix:
	case MatchRegex:
		r, err := regexp.Compile(m.value)
		if err != nil {
			return nil, fmt.Errorf("compile regex matcher: %w", err)
		}
		m.regex = r
	case MatchJSON:
		path := cfg.Match.Path
		if !strings.HasPrefix(path, "$") {
			path = "$." + path
		}
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("parse json path %q: %w", cfg.Match.Path, err)
		}
		m.path = x
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMatcherType, m.matchType)
	}

	return m, nil
}

// CompileMatchers compiles a list of matcher configs, stopping at the first error.
func CompileMatchers(cfgs []MatcherConfig) ([]*Matcher, error) {
	out := make([]*Matcher, 0, len(cfgs))
	for i := range cfgs {
		m, err := NewMatcher(&cfgs[i])
		if err != nil {
			return nil, fmt.Errorf("matcher %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Match reports whether the message matches.
func (m *Matcher) Match(msgType socket.MessageType, data []byte) bool {
	if m.msgTypeFilter != 0 && m.msgTypeFilter != msgType {
		return false
	}

	switch m.matchType {
	case MatchExact:
		return string(data) == m.value
	case MatchRegex:
		return m.regex.Match(data)
	case MatchJSON:
		return m.matchJSON(data)
	case MatchContains:
		return strings.Contains(string(data), m.value)
	case MatchPrefix:
		return strings.HasPrefix(string(data), m.value)
	case MatchSuffix:
		return strings.HasSuffix(string(data), m.value)
	default:
		return false
	}
}

// Response returns the response to send, or nil for a silent match.
func (m *Matcher) Response() *Response {
	if m.noResponse {
		return nil
	}
	return m.response
}

func (m *Matcher) matchJSON(data []byte) bool {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	for _, v := range m.path.Get(doc) {
		if toString(v) == m.value {
			return true
		}
	}
	return false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// ExactMatcher creates a matcher for an exact payload.
func ExactMatcher(value string, response *Response) *Matcher {
	m, _ := NewMatcher(&MatcherConfig{
		Match:    &MatchCriteria{Type: MatchExact, Value: value},
		Response: response,
	})
	return m
}

// JSONMatcher creates a matcher comparing the value at a JSONPath.
func JSONMatcher(path, value string, response *Response) (*Matcher, error) {
	return NewMatcher(&MatcherConfig{
		Match:    &MatchCriteria{Type: MatchJSON, Path: path, Value: value},
		Response: response,
	})
}

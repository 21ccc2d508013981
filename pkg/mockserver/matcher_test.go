package mockserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/wsmock/pkg/socket"
)

func TestMatcher_StringTypes(t *testing.T) {
	tests := []struct {
		name      string
		matchType string
		value     string
		input     string
		expected  bool
	}{
		{"exact match", MatchExact, "hello", "hello", true},
		{"exact case sensitive", MatchExact, "Hello", "hello", false},
		{"exact partial", MatchExact, "hello", "hello world", false},
		{"regex anchored", MatchRegex, "^test$", "test", true},
		{"regex no match", MatchRegex, "^hello", "world hello", false},
		{"contains", MatchContains, "needle", "hay needle stack", true},
		{"contains missing", MatchContains, "needle", "haystack", false},
		{"prefix", MatchPrefix, "cmd:", "cmd:run", true},
		{"prefix missing", MatchPrefix, "cmd:", "run cmd:", false},
		{"suffix", MatchSuffix, ".done", "job.done", true},
		{"suffix missing", MatchSuffix, ".done", "done.job", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatcher(&MatcherConfig{
				Match: &MatchCriteria{Type: tt.matchType, Value: tt.value},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.Match(socket.MessageText, []byte(tt.input)))
		})
	}
}

func TestMatcher_JSONPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		value    string
		input    string
		expected bool
	}{
		{"root field", "$.type", "ping", `{"type":"ping"}`, true},
		{"bare field", "type", "ping", `{"type":"ping"}`, true},
		{"nested", "$.user.name", "ada", `{"user":{"name":"ada"}}`, true},
		{"integer", "$.id", "42", `{"id":42}`, true},
		{"float", "$.ratio", "0.5", `{"ratio":0.5}`, true},
		{"bool", "$.ok", "true", `{"ok":true}`, true},
		{"array element", "$.items[1]", "b", `{"items":["a","b"]}`, true},
		{"wildcard", "$.items[*].id", "2", `{"items":[{"id":1},{"id":2}]}`, true},
		{"mismatch", "$.type", "ping", `{"type":"pong"}`, false},
		{"missing path", "$.missing", "x", `{"type":"ping"}`, false},
		{"not json", "$.type", "ping", `type=ping`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := JSONMatcher(tt.path, tt.value, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.Match(socket.MessageText, []byte(tt.input)))
		})
	}
}

func TestMatcher_MessageTypeFilter(t *testing.T) {
	m, err := NewMatcher(&MatcherConfig{
		Match: &MatchCriteria{Type: MatchExact, Value: "x", MessageType: "binary"},
	})
	require.NoError(t, err)

	assert.False(t, m.Match(socket.MessageText, []byte("x")))
	assert.True(t, m.Match(socket.MessageBinary, []byte("x")))
}

func TestMatcher_InvalidConfig(t *testing.T) {
	_, err := NewMatcher(nil)
	assert.ErrorIs(t, err, ErrInvalidMatcherType)

	_, err = NewMatcher(&MatcherConfig{Match: &MatchCriteria{Type: "fuzzy"}})
	assert.ErrorIs(t, err, ErrInvalidMatcherType)

	_, err = NewMatcher(&MatcherConfig{Match: &MatchCriteria{Type: MatchRegex, Value: "[invalid"}})
	assert.Error(t, err)
}

func TestMatcher_NoResponse(t *testing.T) {
	m, err := NewMatcher(&MatcherConfig{
		Match:      &MatchCriteria{Type: MatchExact, Value: "x"},
		Response:   &Response{Type: "text", Value: "y"},
		NoResponse: true,
	})
	require.NoError(t, err)
	assert.Nil(t, m.Response())
}

func TestCompileMatchers(t *testing.T) {
	ms, err := CompileMatchers([]MatcherConfig{
		{Match: &MatchCriteria{Type: MatchExact, Value: "a"}},
		{Match: &MatchCriteria{Type: MatchPrefix, Value: "b"}},
	})
	require.NoError(t, err)
	assert.Len(t, ms, 2)

	_, err = CompileMatchers([]MatcherConfig{
		{Match: &MatchCriteria{Type: MatchExact, Value: "a"}},
		{Match: &MatchCriteria{Type: "bogus"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matcher 1")
}

func TestResponse_Data(t *testing.T) {
	tests := []struct {
		name     string
		resp     Response
		want     string
		wantType socket.MessageType
		wantErr  error
	}{
		{"text", Response{Type: "text", Value: "pong"}, "pong", socket.MessageText, nil},
		{"default text", Response{Value: "pong"}, "pong", socket.MessageText, nil},
		{"json", Response{Type: "json", Value: map[string]any{"type": "pong"}}, `{"type":"pong"}`, socket.MessageText, nil},
		{"binary base64", Response{Type: "binary", Value: "aGk="}, "hi", socket.MessageBinary, nil},
		{"binary raw", Response{Type: "binary", Value: "not base64!"}, "not base64!", socket.MessageBinary, nil},
		{"text wrong value", Response{Type: "text", Value: 5}, "", socket.MessageText, ErrInvalidResponseValue},
		{"unknown", Response{Type: "xml", Value: "x"}, "", socket.MessageText, ErrUnknownResponseType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mt, err := tt.resp.Data()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assert.Equal(t, tt.wantType, mt)
		})
	}
}

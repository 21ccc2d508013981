package socket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		wantType MessageType
		want     string
	}{
		{"string", "hello", MessageText, "hello"},
		{"bytes", []byte("raw"), MessageBinary, "raw"},
		{"raw json", json.RawMessage(`{"a":1}`), MessageText, `{"a":1}`},
		{"map", map[string]any{"type": "ping"}, MessageText, `{"type":"ping"}`},
		{"number", 42, MessageText, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt, b, err := Encode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, mt)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestEncode_Errors(t *testing.T) {
	_, _, err := Encode(nil)
	assert.ErrorIs(t, err, ErrUnsupportedPayload)

	_, _, err = Encode(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedPayload)
}

func TestEncode_CopiesBytes(t *testing.T) {
	in := []byte("abc")
	_, out, err := Encode(in)
	require.NoError(t, err)
	in[0] = 'x'
	assert.Equal(t, "abc", string(out))
}

func TestReadyState_String(t *testing.T) {
	assert.Equal(t, "CONNECTING", Connecting.String())
	assert.Equal(t, "OPEN", Open.String())
	assert.Equal(t, "CLOSING", Closing.String())
	assert.Equal(t, "CLOSED", Closed.String())
	assert.Equal(t, "ReadyState(9)", ReadyState(9).String())
}

func TestCloseCode_String(t *testing.T) {
	assert.Equal(t, "normal closure", CloseNormalClosure.String())
	assert.Equal(t, "abnormal closure", CloseAbnormalClosure.String())
	assert.Equal(t, "unknown", CloseCode(4999).String())
}

func TestParseErrorPolicy(t *testing.T) {
	assert.Equal(t, ErrorPolicyClose, ParseErrorPolicy("close"))
	assert.Equal(t, ErrorPolicyNotify, ParseErrorPolicy("notify"))
	assert.Equal(t, ErrorPolicyNotify, ParseErrorPolicy(""))
	assert.Equal(t, "close", ErrorPolicyClose.String())
}

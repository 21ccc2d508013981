package socket

import (
	"encoding/json"
	"fmt"
)

// Encode converts a payload to wire form. Strings and json.RawMessage are sent
// as text, []byte as binary, and anything else is JSON encoded as text.
func Encode(data any) (MessageType, []byte, error) {
	switch v := data.(type) {
	case nil:
		return 0, nil, fmt.Errorf("%w: nil", ErrUnsupportedPayload)
	case string:
		return MessageText, []byte(v), nil
	case []byte:
		return MessageBinary, append([]byte(nil), v...), nil
	case json.RawMessage:
		return MessageText, append([]byte(nil), v...), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
		}
		return MessageText, b, nil
	}
}

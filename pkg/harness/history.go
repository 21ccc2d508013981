package harness

import "time"

// History entry types. Event entries come from the socket; the others record
// harness calls.
const (
	HistoryOpen    = "open"
	HistoryMessage = "message"
	HistoryClosed  = "closed"
	HistoryError   = "error"

	HistorySend                 = "send"
	HistorySendError            = "send_error"
	HistorySimulateMessage      = "simulate_message"
	HistorySimulateMessageError = "simulate_message_error"
	HistorySimulateError        = "simulate_error"
	HistoryClose                = "close"
	HistoryReconnect            = "reconnect"
)

// HistoryEntry is one record in the connection history.
type HistoryEntry struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data,omitempty"`
	Code      int       `json:"code,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Text returns Data as a string.
func (e HistoryEntry) Text() string {
	return string(e.Data)
}

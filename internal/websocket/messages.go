package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSyncCompleted    MessageType = "sync.completed"
	TypeSyncError        MessageType = "sync.error"
	TypeApprovalsFlagged MessageType = "approval.flagged"
	TypeConfigUpdated    MessageType = "config.updated"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncCompletedPayload is the payload for sync.completed events.
type SyncCompletedPayload struct {
	RanAt         time.Time `json:"ran_at"`
	DurationMS    int64     `json:"duration_ms"`
	EventsFetched int       `json:"events_fetched"`
	EventsKept    int       `json:"events_kept"`
	DoorWindows   int       `json:"door_windows"`
	PendingCount  int       `json:"pending_count"`
	Applied       bool      `json:"applied"`
}

// SyncErrorPayload is the payload for sync.error events.
type SyncErrorPayload struct {
	RanAt time.Time `json:"ran_at"`
	Error string    `json:"error"`
}

// ApprovalsFlaggedPayload is the payload for approval.flagged events.
type ApprovalsFlaggedPayload struct {
	Count  int      `json:"count"`
	Names  []string `json:"names"`
	Reason string   `json:"reason,omitempty"`
}

// ConfigUpdatedPayload is the payload for config.updated events.
type ConfigUpdatedPayload struct {
	Document string `json:"document"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}

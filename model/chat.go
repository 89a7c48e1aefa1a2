// model/chat.go
package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession groups the turns of one conversation. SessionID is opaque and
// externally visible; it is either supplied by the caller to continue a prior
// conversation or derived when the first turn produces output.
type ChatSession struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	ChatflowID string    `json:"chatflow_id"`
	Topic      string    `json:"topic"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage is one side of a turn. Assistant content is the serialized
// ordered event sequence produced by the relay, not raw text. A user message
// and its paired assistant message are always written together.
type ChatMessage struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DecodedMessage is a ChatMessage prepared for history responses: assistant
// content decoded back into its event sequence.
type DecodedMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content,omitempty"`
	Events    []StreamEvent `json:"events,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

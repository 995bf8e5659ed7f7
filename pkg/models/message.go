package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageRole is the enumerated sender type of a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Valid reports whether the role is one of the known sender types
func (r MessageRole) Valid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	}
	return false
}

// Message belongs to exactly one conversation. Content may be null (an
// attachments-only message); attachments are an opaque JSON payload.
type Message struct {
	ID             string          `json:"id" db:"id"`
	ConversationID string          `json:"conversation_id" db:"conversation_id"`
	Role           MessageRole     `json:"role" db:"role"`
	Content        *string         `json:"content" db:"content"`
	Attachments    json.RawMessage `json:"attachments,omitempty" db:"attachments"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// CreateMessageRequest represents one message to insert. sendMessage accepts
// either a single object or an array of these.
type CreateMessageRequest struct {
	Content     *string         `json:"content,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
	Role        MessageRole     `json:"role"`
}

// NewMessageID generates a message id whose lexical order tracks creation
// order (the pagination cursor compares ids with "<"). The nanosecond prefix
// is zero-padded so string comparison matches numeric comparison.
func NewMessageID(now time.Time) string {
	return fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.New().String())
}

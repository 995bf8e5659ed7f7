package models

import "time"

// Conversation visibility values (stored verbatim)
const (
	VisibilityPublic  = "PUBLIC"
	VisibilityPrivate = "PRIVATE"
)

// Conversation is a message thread scoped to exactly one project. Members
// are fixed at creation time from the project's owner and assistants and are
// not re-synced afterwards.
type Conversation struct {
	ID            string     `json:"id" db:"id"`
	ProjectID     string     `json:"project_id" db:"project_id"`
	Title         string     `json:"title" db:"title"`
	Visibility    string     `json:"visibility" db:"visibility"`
	LastReadAt    *time.Time `json:"last_read_at,omitempty" db:"last_read_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`

	// Members holds the user IDs fixed at creation time.
	Members  []string  `json:"members,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// CreateConversationRequest represents the request payload for opening a
// conversation on a project
type CreateConversationRequest struct {
	ProjectID  string `json:"projectId"`
	Title      string `json:"title"`
	Visibility string `json:"visibility,omitempty"`
}

// PaginatedMessages is one page of a conversation's messages, newest first.
// NextCursor is the id of the oldest message in the page and is only set
// when more messages exist.
type PaginatedMessages struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"nextCursor,omitempty"`
	HasMore    bool      `json:"hasMore"`
}

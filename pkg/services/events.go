package services

import (
	"time"

	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/pubsub"
)

// Topics fanned out by the domain services. Delivery guarantees follow the
// cost of a duplicate: message-created handlers must tolerate replays,
// everything else is deduplicated by event ID.
var (
	ProjectCreatedTopic = pubsub.Topic{Name: "project-created", Guarantee: pubsub.ExactlyOnce}
	MessageCreatedTopic = pubsub.Topic{Name: "message-created", Guarantee: pubsub.AtLeastOnce}
	MessageUpdatedTopic = pubsub.Topic{Name: "message-updated", Guarantee: pubsub.ExactlyOnce}
	MessageDeletedTopic = pubsub.Topic{Name: "message-deleted", Guarantee: pubsub.ExactlyOnce}
)

// ProjectCreatedEvent is published once per new project.
type ProjectCreatedEvent struct {
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name"`
	OwnerID    string    `json:"owner_id"`
	Assistants []string  `json:"assistants"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageCreatedEvent is published once per inserted message.
type MessageCreatedEvent struct {
	Message models.Message `json:"message"`
}

// MessageUpdatedEvent carries the new message state plus the content it replaced.
type MessageUpdatedEvent struct {
	Message         models.Message `json:"message"`
	PreviousContent *string        `json:"previous_content"`
}

// MessageDeletedEvent is published after a message row is removed.
type MessageDeletedEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

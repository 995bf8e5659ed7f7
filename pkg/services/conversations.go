package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/pubsub"
)

// DefaultMessagePageSize is the page size used when a caller does not set one.
const DefaultMessagePageSize = 30

// ConversationService implements conversation and message orchestration.
type ConversationService struct {
	db     database.DatabaseInterface
	broker *pubsub.Broker
}

// NewConversationService creates a conversation service.
func NewConversationService(db database.DatabaseInterface, broker *pubsub.Broker) *ConversationService {
	return &ConversationService{db: db, broker: broker}
}

// CreateConversation opens a conversation on a project. The member list is
// fixed at creation time to the project owner plus its assistants and never
// re-synced afterwards.
func (s *ConversationService) CreateConversation(userID string, req *models.CreateConversationRequest) (*models.Conversation, error) {
	project, err := s.db.GetProjectWithTeam(req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("project %s not found", req.ProjectID)
	}

	if !isProjectParticipant(project, userID) {
		return nil, fmt.Errorf("user %s is not a member of project %s", userID, project.ID)
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}

	members := append([]string{project.OwnerID}, project.Assistants...)
	members = dedupe(members)

	conversation := &models.Conversation{
		ID:         uuid.New().String(),
		ProjectID:  project.ID,
		Title:      req.Title,
		Visibility: visibility,
	}

	if err := s.db.CreateConversation(conversation, members); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conversation, nil
}

func isProjectParticipant(project *models.Project, userID string) bool {
	if project.OwnerID == userID {
		return true
	}
	for _, a := range project.Assistants {
		if a == userID {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// SendMessage inserts one or more messages in a single transaction that also
// stamps the conversation's lastMessageAt. One message-created event is
// published per inserted message, but only the first message is returned.
func (s *ConversationService) SendMessage(conversationID, userID string, reqs []models.CreateMessageRequest) (*models.Message, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	if err := s.requireMember(conversationID, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	messages := make([]models.Message, 0, len(reqs))
	for _, req := range reqs {
		role := req.Role
		if role == "" {
			role = models.MessageRoleUser
		}
		if !role.Valid() {
			return nil, fmt.Errorf("invalid message role %q", req.Role)
		}
		messages = append(messages, models.Message{
			ID:             models.NewMessageID(now),
			ConversationID: conversationID,
			Role:           role,
			Content:        req.Content,
			Attachments:    req.Attachments,
			CreatedAt:      now,
		})
	}

	if err := s.db.InsertMessages(conversationID, messages); err != nil {
		return nil, fmt.Errorf("failed to send messages: %w", err)
	}

	for _, m := range messages {
		if _, err := s.broker.Publish(MessageCreatedTopic, MessageCreatedEvent{Message: m}); err != nil {
			fmt.Printf("[error] failed to publish message-created for %s: %v\n", m.ID, err)
		}
	}

	return &messages[0], nil
}

// GetMessages returns one page of messages, newest first. The cursor is the
// oldest message ID the caller has already seen.
func (s *ConversationService) GetMessages(conversationID, userID string, limit int, cursor string) (*models.PaginatedMessages, error) {
	if err := s.requireMember(conversationID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultMessagePageSize
	}

	// Fetch one extra row to learn whether another page exists.
	messages, err := s.db.ListMessages(conversationID, limit+1, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	page := &models.PaginatedMessages{
		Messages: messages,
		HasMore:  hasMore,
	}
	if hasMore && len(messages) > 0 {
		page.NextCursor = messages[len(messages)-1].ID
	}
	return page, nil
}

// EditMessage replaces a message's content. A nil content clears it. The
// published event carries the previous content for subscribers.
func (s *ConversationService) EditMessage(messageID, userID string, content *string) (*models.Message, error) {
	message, err := s.db.GetMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("message %s not found", messageID)
	}

	if err := s.requireMember(message.ConversationID, userID); err != nil {
		return nil, err
	}

	previous := message.Content
	message.Content = content
	if err := s.db.UpdateMessage(message); err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}

	if _, err := s.broker.Publish(MessageUpdatedTopic, MessageUpdatedEvent{
		Message:         *message,
		PreviousContent: previous,
	}); err != nil {
		fmt.Printf("[error] failed to publish message-updated for %s: %v\n", message.ID, err)
	}

	return message, nil
}

// DeleteMessage hard-deletes a message.
func (s *ConversationService) DeleteMessage(messageID, userID string) error {
	message, err := s.db.GetMessage(messageID)
	if err != nil {
		return fmt.Errorf("message %s not found", messageID)
	}

	if err := s.requireMember(message.ConversationID, userID); err != nil {
		return err
	}

	if err := s.db.DeleteMessage(messageID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if _, err := s.broker.Publish(MessageDeletedTopic, MessageDeletedEvent{
		MessageID:      messageID,
		ConversationID: message.ConversationID,
	}); err != nil {
		fmt.Printf("[error] failed to publish message-deleted for %s: %v\n", messageID, err)
	}

	return nil
}

func (s *ConversationService) requireMember(conversationID, userID string) error {
	ok, err := s.db.IsConversationMember(conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to check conversation membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %s is not a member of conversation %s", userID, conversationID)
	}
	return nil
}

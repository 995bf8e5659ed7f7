package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/pubsub"
)

type conversationFixture struct {
	db            *database.MemoryDatabase
	broker        *pubsub.Broker
	conversations *ConversationService
	project       *models.Project

	messageCreated atomic.Int32
	messageUpdated atomic.Int32
	messageDeleted atomic.Int32
	lastUpdated    chan MessageUpdatedEvent
}

func newConversationFixture(t *testing.T) *conversationFixture {
	t.Helper()

	f := &conversationFixture{
		db:          database.NewMemoryDatabase(),
		broker:      pubsub.NewBroker(),
		lastUpdated: make(chan MessageUpdatedEvent, 8),
	}
	f.conversations = NewConversationService(f.db, f.broker)

	require.NoError(t, f.broker.Subscribe(MessageCreatedTopic, pubsub.SubscriptionConfig{Name: "created-counter"},
		func(ctx context.Context, ev pubsub.Event) error {
			f.messageCreated.Add(1)
			return nil
		}))
	require.NoError(t, f.broker.Subscribe(MessageUpdatedTopic, pubsub.SubscriptionConfig{Name: "updated-counter"},
		func(ctx context.Context, ev pubsub.Event) error {
			f.messageUpdated.Add(1)
			f.lastUpdated <- ev.Payload.(MessageUpdatedEvent)
			return nil
		}))
	require.NoError(t, f.broker.Subscribe(MessageDeletedTopic, pubsub.SubscriptionConfig{Name: "deleted-counter"},
		func(ctx context.Context, ev pubsub.Event) error {
			f.messageDeleted.Add(1)
			return nil
		}))

	f.broker.Start()
	t.Cleanup(f.broker.Close)

	require.NoError(t, f.db.CreateUser(&models.User{ID: "owner"}))
	require.NoError(t, f.db.CreateUser(&models.User{ID: "helper"}))
	require.NoError(t, f.db.CreateUser(&models.User{ID: "stranger"}))

	f.project = &models.Project{Name: "Site", Status: models.ProjectStatusActive, OwnerID: "owner"}
	require.NoError(t, f.db.CreateProject(f.project))
	require.NoError(t, f.db.AddProjectAssistant(f.project.ID, "helper"))
	return f
}

func (f *conversationFixture) newConversation(t *testing.T) *models.Conversation {
	t.Helper()
	conv, err := f.conversations.CreateConversation("owner", &models.CreateConversationRequest{
		ProjectID: f.project.ID,
		Title:     "Discussion",
	})
	require.NoError(t, err)
	return conv
}

func strPtr(s string) *string { return &s }

func TestConversationMembersFixedAtCreation(t *testing.T) {
	f := newConversationFixture(t)

	conv := f.newConversation(t)
	assert.ElementsMatch(t, []string{"owner", "helper"}, conv.Members)
	assert.Equal(t, models.VisibilityPublic, conv.Visibility)

	// a later assistant does not join existing conversations
	require.NoError(t, f.db.AddProjectAssistant(f.project.ID, "stranger"))
	got, err := f.db.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner", "helper"}, got.Members)
}

func TestCreateConversationAuthorization(t *testing.T) {
	f := newConversationFixture(t)

	// assistants may open conversations too
	_, err := f.conversations.CreateConversation("helper", &models.CreateConversationRequest{
		ProjectID: f.project.ID,
		Title:     "By helper",
	})
	require.NoError(t, err)

	_, err = f.conversations.CreateConversation("stranger", &models.CreateConversationRequest{
		ProjectID: f.project.ID,
		Title:     "Nope",
	})
	assert.Error(t, err)

	_, err = f.conversations.CreateConversation("owner", &models.CreateConversationRequest{
		ProjectID: "missing",
		Title:     "Nope",
	})
	assert.Error(t, err)
}

func TestSendMessageBatchReturnsFirstOnly(t *testing.T) {
	f := newConversationFixture(t)
	conv := f.newConversation(t)

	first, err := f.conversations.SendMessage(conv.ID, "owner", []models.CreateMessageRequest{
		{Content: strPtr("one"), Role: models.MessageRoleUser},
		{Content: strPtr("two"), Role: models.MessageRoleAssistant},
		{Content: strPtr("three"), Role: models.MessageRoleUser},
	})
	require.NoError(t, err)
	assert.Equal(t, "one", *first.Content)

	// one event per inserted message, even though only the first is returned
	f.broker.Flush()
	assert.Equal(t, int32(3), f.messageCreated.Load())

	// all three messages persisted and lastMessageAt stamped
	got, err := f.db.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastMessageAt)

	page, err := f.conversations.GetMessages(conv.ID, "owner", 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 3)
}

func TestSendMessageDefaultsAndValidation(t *testing.T) {
	f := newConversationFixture(t)
	conv := f.newConversation(t)

	msg, err := f.conversations.SendMessage(conv.ID, "owner", []models.CreateMessageRequest{
		{Content: strPtr("no role given")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageRoleUser, msg.Role)

	_, err = f.conversations.SendMessage(conv.ID, "owner", nil)
	assert.Error(t, err)

	_, err = f.conversations.SendMessage(conv.ID, "owner", []models.CreateMessageRequest{
		{Content: strPtr("x"), Role: "robot"},
	})
	assert.Error(t, err)
}

func TestSendMessageRequiresMembership(t *testing.T) {
	f := newConversationFixture(t)
	conv := f.newConversation(t)

	_, err := f.conversations.SendMessage(conv.ID, "stranger", []models.CreateMessageRequest{
		{Content: strPtr("hi")},
	})
	require.Error(t, err)

	f.broker.Flush()
	assert.Equal(t, int32(0), f.messageCreated.Load())
}

func TestGetMessagesPaginationWalk(t *testing.T) {
	f := newConversationFixture(t)
	conv := f.newConversation(t)

	for i := 0; i < 31; i++ {
		_, err := f.conversations.SendMessage(conv.ID, "owner", []models.CreateMessageRequest{
			{Content: strPtr(fmt.Sprintf("msg %d", i))},
		})
		require.NoError(t, err)
	}

	page, err := f.conversations.GetMessages(conv.ID, "owner", 0, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 30)
	assert.True(t, page.HasMore)
	assert.Equal(t, page.Messages[29].ID, page.NextCursor)
	// newest first
	assert.Equal(t, "msg 30", *page.Messages[0].Content)

	rest, err := f.conversations.GetMessages(conv.ID, "owner", 0, page.NextCursor)
	require.NoError(t, err)
	require.Len(t, rest.Messages, 1)
	assert.False(t, rest.HasMore)
	assert.Empty(t, rest.NextCursor)
	assert.Equal(t, "msg 0", *rest.Messages[0].Content)
}

func TestGetMessagesNonMember(t *testing.T) {
	f := newConversationFixture(t)
	conv := f.newConversation(t)

	_, err := f.conversations.GetMessages(conv.ID, "stranger", 0, "")
	assert.Error(t, err)
}

func TestEditMessagePublishesPreviousContent(t *testing.T) {
	f := newConversationFixture(t)
	conv := f.newConversation(t)

	msg, err := f.conversations.SendMessage(conv.ID, "owner", []models.CreateMessageRequest{
		{Content: strPtr("before")},
	})
	require.NoError(t, err)

	edited, err := f.conversations.EditMessage(msg.ID, "helper", strPtr("after"))
	require.NoError(t, err)
	assert.Equal(t, "after", *edited.Content)

	f.broker.Flush()
	require.Equal(t, int32(1), f.messageUpdated.Load())
	ev := <-f.lastUpdated
	require.NotNil(t, ev.PreviousContent)
	assert.Equal(t, "before", *ev.PreviousContent)

	// content can be cleared to null
	cleared, err := f.conversations.EditMessage(msg.ID, "owner", nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.Content)

	_, err = f.conversations.EditMessage(msg.ID, "stranger", strPtr("nope"))
	assert.Error(t, err)

	_, err = f.conversations.EditMessage("missing", "owner", strPtr("nope"))
	assert.Error(t, err)
}

func TestDeleteMessage(t *testing.T) {
	f := newConversationFixture(t)
	conv := f.newConversation(t)

	msg, err := f.conversations.SendMessage(conv.ID, "owner", []models.CreateMessageRequest{
		{Content: strPtr("bye")},
	})
	require.NoError(t, err)

	require.Error(t, f.conversations.DeleteMessage(msg.ID, "stranger"))
	require.NoError(t, f.conversations.DeleteMessage(msg.ID, "owner"))

	f.broker.Flush()
	assert.Equal(t, int32(1), f.messageDeleted.Load())

	_, err = f.db.GetMessage(msg.ID)
	assert.Error(t, err)
}

package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-collab-backend/pkg/models"
)

func seedUser(t *testing.T, db *MemoryDatabase, id string) *models.User {
	t.Helper()
	user := &models.User{ID: id, Name: "Test", Surname: "User"}
	require.NoError(t, db.CreateUser(user))
	return user
}

func seedProject(t *testing.T, db *MemoryDatabase, ownerID string) *models.Project {
	t.Helper()
	project := &models.Project{
		Name:    "Renovation",
		Status:  models.ProjectStatusActive,
		OwnerID: ownerID,
	}
	require.NoError(t, db.CreateProject(project))
	return project
}

func TestUserCRUD(t *testing.T) {
	db := NewMemoryDatabase()

	user := seedUser(t, db, "user_1")

	got, err := db.GetUserByID("user_1")
	require.NoError(t, err)
	assert.Equal(t, user.Name, got.Name)

	got.Surname = "Updated"
	require.NoError(t, db.UpdateUser(got))
	got, err = db.GetUserByID("user_1")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Surname)

	require.NoError(t, db.DeleteUser("user_1"))
	_, err = db.GetUserByID("user_1")
	assert.Error(t, err)
}

func TestProjectWithTeam(t *testing.T) {
	db := NewMemoryDatabase()
	seedUser(t, db, "owner")
	project := seedProject(t, db, "owner")

	require.NoError(t, db.AddProjectAssistant(project.ID, "helper1"))
	require.NoError(t, db.AddProjectAssistant(project.ID, "helper2"))
	// adding twice must not duplicate
	require.NoError(t, db.AddProjectAssistant(project.ID, "helper1"))

	got, err := db.GetProjectWithTeam(project.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"helper1", "helper2"}, got.Assistants)

	_, err = db.GetProjectWithTeam("missing")
	assert.Error(t, err)
}

func TestDeleteProjectCascades(t *testing.T) {
	db := NewMemoryDatabase()
	seedUser(t, db, "owner")
	project := seedProject(t, db, "owner")

	conv := &models.Conversation{ProjectID: project.ID, Title: "t", Visibility: models.VisibilityPublic}
	require.NoError(t, db.CreateConversation(conv, []string{"owner"}))

	require.NoError(t, db.DeleteProject(project.ID))

	_, err := db.GetProject(project.ID)
	assert.Error(t, err)
	_, err = db.GetConversation(conv.ID)
	assert.Error(t, err)
}

func TestConversationMembers(t *testing.T) {
	db := NewMemoryDatabase()
	seedUser(t, db, "owner")
	project := seedProject(t, db, "owner")

	conv := &models.Conversation{ProjectID: project.ID, Title: "Discussion", Visibility: models.VisibilityPublic}
	require.NoError(t, db.CreateConversation(conv, []string{"owner", "helper"}))

	got, err := db.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner", "helper"}, got.Members)

	isMember, err := db.IsConversationMember(conv.ID, "owner")
	require.NoError(t, err)
	assert.True(t, isMember)

	isMember, err = db.IsConversationMember(conv.ID, "stranger")
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestInsertMessagesStampsConversation(t *testing.T) {
	db := NewMemoryDatabase()
	seedUser(t, db, "owner")
	project := seedProject(t, db, "owner")

	conv := &models.Conversation{ProjectID: project.ID, Title: "t", Visibility: models.VisibilityPublic}
	require.NoError(t, db.CreateConversation(conv, []string{"owner"}))
	require.Nil(t, conv.LastMessageAt)

	content := "hello"
	msg := models.Message{
		ID:        models.NewMessageID(time.Now()),
		Role:      models.MessageRoleUser,
		Content:   &content,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.InsertMessages(conv.ID, []models.Message{msg}))

	got, err := db.GetConversation(conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageAt)

	stored, err := db.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", *stored.Content)

	// unknown conversation leaves no trace
	err = db.InsertMessages("missing", []models.Message{msg})
	assert.Error(t, err)
}

func TestListMessagesCursor(t *testing.T) {
	db := NewMemoryDatabase()
	seedUser(t, db, "owner")
	project := seedProject(t, db, "owner")

	conv := &models.Conversation{ProjectID: project.ID, Title: "t", Visibility: models.VisibilityPublic}
	require.NoError(t, db.CreateConversation(conv, []string{"owner"}))

	base := time.Now()
	var ids []string
	for i := 0; i < 5; i++ {
		content := fmt.Sprintf("msg %d", i)
		msg := models.Message{
			ID:        models.NewMessageID(base.Add(time.Duration(i) * time.Millisecond)),
			Role:      models.MessageRoleUser,
			Content:   &content,
			CreatedAt: base,
		}
		require.NoError(t, db.InsertMessages(conv.ID, []models.Message{msg}))
		ids = append(ids, msg.ID)
	}

	// newest first
	page, err := db.ListMessages(conv.ID, 3, "")
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[2], page[2].ID)

	// cursor excludes everything at or after it
	rest, err := db.ListMessages(conv.ID, 10, page[2].ID)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, ids[1], rest[0].ID)
	assert.Equal(t, ids[0], rest[1].ID)
}

func TestMediaUpsertByIDAndName(t *testing.T) {
	db := NewMemoryDatabase()

	byID := &models.Media{ID: "m1", Name: "a.png", Data: []byte{1, 2}, MimeType: "image/png"}
	require.NoError(t, db.UpsertMediaByID(byID))

	// same id, new bytes
	again := &models.Media{ID: "m1", Name: "a.png", Data: []byte{3, 4}, MimeType: "image/png"}
	require.NoError(t, db.UpsertMediaByID(again))

	got, err := db.GetMediaByID("m1")
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, got.Data)

	// name-keyed upsert reuses the existing row for that name
	byName := &models.Media{ID: "ignored", Name: "a.png", Data: []byte{5}, MimeType: "image/png"}
	require.NoError(t, db.UpsertMediaByName(byName))
	assert.Equal(t, "m1", byName.ID)

	names, err := db.ListMediaNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, names)
}

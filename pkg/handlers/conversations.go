package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"

	"project-collab-backend/pkg/middleware"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/utils"
)

// ConversationsHandler exposes conversation and message endpoints.
type ConversationsHandler struct {
	conversations *services.ConversationService
}

// NewConversationsHandler 创建会话处理器
func NewConversationsHandler(conversations *services.ConversationService) *ConversationsHandler {
	return &ConversationsHandler{conversations: conversations}
}

// POST /conversations
func (h *ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthData(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.CreateConversationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.Title) == "" {
		utils.WriteBadRequestResponse(w, "projectId and title are required")
		return
	}

	conversation, err := h.conversations.CreateConversation(auth.UserID, &req)
	if err != nil {
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, conversation)
}

// POST /conversations/{id}/messages
// The body is either one message object or an array of them. Only the first
// created message is returned either way.
func (h *ConversationsHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthData(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	conversationID := chiRoute.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	reqs, err := parseMessageBatch(body)
	if err != nil {
		utils.WriteBadRequestResponse(w, err.Error())
		return
	}

	message, err := h.conversations.SendMessage(conversationID, auth.UserID, reqs)
	if err != nil {
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, message)
}

func parseMessageBatch(body []byte) ([]models.CreateMessageRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errInvalidMessageBody
	}

	if trimmed[0] == '[' {
		var reqs []models.CreateMessageRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, errInvalidMessageBody
		}
		return reqs, nil
	}

	var req models.CreateMessageRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, errInvalidMessageBody
	}
	return []models.CreateMessageRequest{req}, nil
}

var errInvalidMessageBody = errors.New("Invalid message body")

// GET /conversations/{id}/messages?limit&cursor
func (h *ConversationsHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthData(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	conversationID := chiRoute.URLParam(r, "id")
	cursor := utils.GetQueryParam(r, "cursor", "")

	// limit=0 means "use the default page size", like an absent limit.
	limit := 0
	if raw := utils.GetQueryParam(r, "limit", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.WriteBadRequestResponse(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.conversations.GetMessages(conversationID, auth.UserID, limit, cursor)
	if err != nil {
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, page)
}

// PUT /conversations/{id}/messages/{messageId}
func (h *ConversationsHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthData(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	messageID := chiRoute.URLParam(r, "messageId")

	// Content is nullable: {"content": null} clears the text.
	var req struct {
		Content *string `json:"content"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	message, err := h.conversations.EditMessage(messageID, auth.UserID, req.Content)
	if err != nil {
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, message)
}

// DELETE /conversations/{id}/messages/{messageId}
func (h *ConversationsHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthData(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	messageID := chiRoute.URLParam(r, "messageId")

	if err := h.conversations.DeleteMessage(messageID, auth.UserID); err != nil {
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]bool{"success": true})
}

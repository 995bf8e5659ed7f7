package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"project-collab-backend/pkg/clerk"
	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/utils"
)

// IdentityDirectory is the slice of the identity provider's API the webhook
// ingest needs to place new users into the default organization.
type IdentityDirectory interface {
	ListOrganizations() ([]clerk.APIOrganization, error)
	CreateOrganizationMembership(orgID, userID, role string) error
}

// WebhookHandler 处理身份提供商的生命周期回调
type WebhookHandler struct {
	config    *config.Config
	users     *services.UserService
	directory IdentityDirectory
}

// NewWebhookHandler 创建webhook处理器
func NewWebhookHandler(cfg *config.Config, users *services.UserService, directory IdentityDirectory) *WebhookHandler {
	return &WebhookHandler{
		config:    cfg,
		users:     users,
		directory: directory,
	}
}

// clerkWebhookEvent Clerk webhook事件结构
type clerkWebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	fmt.Printf("🔔 Clerk webhook received: %s %s\n", r.Method, r.URL.Path)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		fmt.Printf("❌ Failed to read webhook body: %v\n", err)
		utils.WriteBadRequestResponse(w, "Failed to read request body")
		return
	}

	// 验证webhook签名
	if !h.verifySvixSignature(r, body) {
		fmt.Printf("❌ Invalid webhook signature\n")
		utils.WriteUnauthorizedResponse(w, "Invalid webhook signature")
		return
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		fmt.Printf("❌ Failed to parse webhook event: %v\n", err)
		utils.WriteBadRequestResponse(w, "Invalid webhook payload")
		return
	}

	fmt.Printf("🔍 Processing Clerk event: %s (user: %s)\n", event.Type, event.Data.ID)

	switch event.Type {
	case "user.created":
		if err := h.handleUserCreated(event); err != nil {
			fmt.Printf("❌ Failed to handle user.created: %v\n", err)
			utils.WriteInternalServerErrorResponse(w, "Failed to process event")
			return
		}
	case "user.updated":
		h.users.HandleUpdated(event.Data.ID)
	case "user.deleted":
		h.users.HandleDeleted(event.Data.ID)
	default:
		fmt.Printf("⚠️ Unhandled Clerk event type: %s\n", event.Type)
		utils.WriteSuccessResponse(w, map[string]string{"status": "ignored"})
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{"status": "processed"})
}

// handleUserCreated mirrors the user locally, then makes a best-effort
// attempt to enroll them in the default organization. A membership failure
// is logged, never surfaced to the identity provider.
func (h *WebhookHandler) handleUserCreated(event clerkWebhookEvent) error {
	if event.Data.ID == "" {
		return fmt.Errorf("user.created event has no user id")
	}

	// Accounts without an email address are not mirrored.
	if len(event.Data.EmailAddresses) == 0 {
		fmt.Printf("[warn] user.created for %s has no email address, skipping\n", event.Data.ID)
		return nil
	}

	if _, err := h.users.CreateFromIdentity(event.Data.ID, event.Data.FirstName, event.Data.LastName); err != nil {
		return err
	}

	if h.directory == nil {
		return nil
	}

	orgs, err := h.directory.ListOrganizations()
	if err != nil || len(orgs) == 0 {
		fmt.Printf("[warn] could not resolve default organization for %s: %v\n", event.Data.ID, err)
		return nil
	}
	if err := h.directory.CreateOrganizationMembership(orgs[0].ID, event.Data.ID, "org:customer"); err != nil {
		fmt.Printf("[warn] failed to add %s to organization %s: %v\n", event.Data.ID, orgs[0].ID, err)
	}
	return nil
}

// verifySvixSignature 验证Svix风格的webhook签名
// signed content = "<svix-id>.<svix-timestamp>.<body>"，密钥为whsec_前缀的base64
func (h *WebhookHandler) verifySvixSignature(r *http.Request, body []byte) bool {
	secret := h.config.ClerkWebhookSecret
	if secret == "" {
		fmt.Printf("⚠️ CLERK_WEBHOOK_SECRET not configured, skipping signature verification\n")
		return true
	}

	msgID := r.Header.Get("svix-id")
	timestamp := r.Header.Get("svix-timestamp")
	signatures := r.Header.Get("svix-signature")
	if msgID == "" || timestamp == "" || signatures == "" {
		return false
	}

	// 时间戳容差5分钟，防止重放
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if math.Abs(float64(time.Now().Unix()-ts)) > 5*60 {
		return false
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		fmt.Printf("❌ Invalid webhook secret encoding: %v\n", err)
		return false
	}

	signedContent := msgID + "." + timestamp + "." + string(body)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signedContent))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// 签名头可能携带多个空格分隔的"v1,<sig>"条目
	for _, sig := range strings.Fields(signatures) {
		parts := strings.SplitN(sig, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		if hmac.Equal([]byte(parts[1]), []byte(expected)) {
			return true
		}
	}
	return false
}

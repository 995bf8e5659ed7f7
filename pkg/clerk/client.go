package clerk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal REST client for the Clerk Backend API. Only the
// endpoints the backend actually needs are exposed.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a Clerk API client.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.clerk.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// EmailAddress is a single email address record on a Clerk user.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// APIUser is the subset of Clerk's user object the backend consumes.
type APIUser struct {
	ID                    string         `json:"id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	ImageURL              string         `json:"image_url"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
}

// PrimaryEmail resolves the user's primary email address, falling back to the
// first one on the account.
func (u *APIUser) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// APIOrganization is the subset of Clerk's organization object the backend consumes.
type APIOrganization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// OrganizationMembership links a user to an organization with a role.
type OrganizationMembership struct {
	ID           string          `json:"id"`
	Role         string          `json:"role"`
	Organization APIOrganization `json:"organization"`
}

type listResponse[T any] struct {
	Data       []T   `json:"data"`
	TotalCount int64 `json:"total_count"`
}

// makeRequest 发送HTTP请求到Clerk Backend API
func (c *Client) makeRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("clerk API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// GetUser fetches a single user by ID.
func (c *Client) GetUser(userID string) (*APIUser, error) {
	data, err := c.makeRequest("GET", "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}

	var user APIUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	return &user, nil
}

// ListOrganizationMemberships lists the organizations a user belongs to.
func (c *Client) ListOrganizationMemberships(userID string) ([]OrganizationMembership, error) {
	data, err := c.makeRequest("GET", "/users/"+url.PathEscape(userID)+"/organization_memberships?limit=100", nil)
	if err != nil {
		return nil, err
	}

	var resp listResponse[OrganizationMembership]
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse memberships response: %w", err)
	}
	return resp.Data, nil
}

// ListOrganizations lists the instance's organizations.
func (c *Client) ListOrganizations() ([]APIOrganization, error) {
	data, err := c.makeRequest("GET", "/organizations?limit=100", nil)
	if err != nil {
		return nil, err
	}

	var resp listResponse[APIOrganization]
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse organizations response: %w", err)
	}
	return resp.Data, nil
}

// CreateOrganizationMembership adds a user to an organization with the given role.
func (c *Client) CreateOrganizationMembership(orgID, userID, role string) error {
	body := map[string]string{
		"user_id": userID,
		"role":    role,
	}
	_, err := c.makeRequest("POST", "/organizations/"+url.PathEscape(orgID)+"/memberships", body)
	return err
}

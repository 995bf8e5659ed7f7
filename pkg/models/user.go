package models

import "time"

// User mirrors an identity-provider user record into the local database.
// Rows are created by the webhook ingest on "user.created" and are not
// otherwise mutated in this codebase.
type User struct {
	ID        string    `json:"id" db:"id"` // identity-provider issued id
	Name      string    `json:"name" db:"name"`
	Surname   string    `json:"surname" db:"surname"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Organization roles as seen by the access checks. The identity provider
// reports them prefixed ("org:customer"); the auth gateway strips the prefix.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// AuthData 认证网关解析出的请求身份（附加到每个请求的context）
type AuthData struct {
	UserID         string `json:"user_id"`
	ImageURL       string `json:"image_url"`
	EmailAddress   string `json:"email_address,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	Role           string `json:"role,omitempty"` // organization membership role, "" when none
}

// CanManageProjects reports whether the role may create projects.
func (a *AuthData) CanManageProjects() bool {
	return a.Role == RoleCustomer || a.Role == RoleAdmin
}

// IsAdmin reports whether the role may perform admin-only operations.
func (a *AuthData) IsAdmin() bool {
	return a.Role == RoleAdmin
}

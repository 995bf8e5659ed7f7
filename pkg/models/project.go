package models

import "time"

// Project statuses
const (
	ProjectStatusActive = "active"
)

// Project represents a customer project. A project is owned by exactly one
// user and has many conversations; assistants are additional users who may
// open conversations on it.
type Project struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Location    string    `json:"location" db:"location"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      string    `json:"status" db:"status"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// Optional relations, populated only by the queries that need them.
	// Assistants holds user IDs.
	Conversations []Conversation `json:"conversations,omitempty"`
	Assistants    []string       `json:"assistants,omitempty"`
}

// CreateProjectRequest represents the request payload for project creation
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description,omitempty"`
}

// UpdateProjectRequest represents a partial project update (name/location)
type UpdateProjectRequest struct {
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
}

// AddAssistantRequest attaches a collaborator to a project
type AddAssistantRequest struct {
	UserID string `json:"userId"`
}

// DeleteProjectResponse reports whether a project row was removed
type DeleteProjectResponse struct {
	Success bool `json:"success"`
}

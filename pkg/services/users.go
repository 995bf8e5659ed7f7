package services

import (
	"fmt"

	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/models"
)

// UserService mirrors identity-provider users into the local database.
type UserService struct {
	db database.DatabaseInterface
}

// NewUserService creates a user service.
func NewUserService(db database.DatabaseInterface) *UserService {
	return &UserService{db: db}
}

// CreateFromIdentity persists a local mirror of an identity-provider user.
func (s *UserService) CreateFromIdentity(id, firstName, lastName string) (*models.User, error) {
	user := &models.User{
		ID:      id,
		Name:    firstName,
		Surname: lastName,
	}
	if err := s.db.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to mirror user %s: %w", id, err)
	}
	return user, nil
}

// HandleUpdated acknowledges a user.updated event without acting on it.
// Profile data is read live from the identity provider, so the mirror is
// only kept for relational integrity.
func (s *UserService) HandleUpdated(id string) {
	fmt.Printf("[warn] user.updated for %s ignored (mirror not re-synced)\n", id)
}

// HandleDeleted acknowledges a user.deleted event without acting on it.
func (s *UserService) HandleDeleted(id string) {
	fmt.Printf("[warn] user.deleted for %s ignored (mirror retained)\n", id)
}

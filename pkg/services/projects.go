package services

import (
	"fmt"

	"github.com/google/uuid"

	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/pubsub"
)

// ProjectService implements project CRUD. Role checks live in the HTTP
// handlers; the service trusts its callers.
type ProjectService struct {
	db     database.DatabaseInterface
	broker *pubsub.Broker
}

// NewProjectService creates a project service.
func NewProjectService(db database.DatabaseInterface, broker *pubsub.Broker) *ProjectService {
	return &ProjectService{db: db, broker: broker}
}

// Create persists a new active project owned by ownerID and publishes a
// project-created event.
func (s *ProjectService) Create(ownerID string, req *models.CreateProjectRequest) (*models.Project, error) {
	if req.Name == "" || req.Location == "" {
		return nil, fmt.Errorf("%w: name and location are required", ErrInvalidArgument)
	}

	// The owner row must exist before we hang a project off it.
	if _, err := s.db.GetUserByID(ownerID); err != nil {
		return nil, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}

	project := &models.Project{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Location:    req.Location,
		Description: req.Description,
		Status:      models.ProjectStatusActive,
		OwnerID:     ownerID,
	}

	if err := s.db.CreateProject(project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if _, err := s.broker.Publish(ProjectCreatedTopic, ProjectCreatedEvent{
		ProjectID:  project.ID,
		Name:       project.Name,
		OwnerID:    project.OwnerID,
		Assistants: nil,
		CreatedAt:  project.CreatedAt,
	}); err != nil {
		fmt.Printf("[error] failed to publish project-created for %s: %v\n", project.ID, err)
	}

	return project, nil
}

// FindOne returns a project with its conversations.
func (s *ProjectService) FindOne(id string) (*models.Project, error) {
	project, err := s.db.GetProjectWithConversations(id)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return project, nil
}

// FindAll returns every project with its conversations.
func (s *ProjectService) FindAll() ([]models.Project, error) {
	projects, err := s.db.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	for i := range projects {
		full, err := s.db.GetProjectWithConversations(projects[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversations for project %s: %w", projects[i].ID, err)
		}
		projects[i].Conversations = full.Conversations
	}
	return projects, nil
}

// Update applies a partial name/location update.
func (s *ProjectService) Update(id string, req *models.UpdateProjectRequest) (*models.Project, error) {
	project, err := s.db.GetProject(id)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}

	if req.Name != "" {
		project.Name = req.Name
	}
	if req.Location != "" {
		project.Location = req.Location
	}

	if err := s.db.UpdateProject(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// Delete hard-deletes a project.
func (s *ProjectService) Delete(id string) (*models.DeleteProjectResponse, error) {
	if err := s.db.DeleteProject(id); err != nil {
		return nil, fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return &models.DeleteProjectResponse{Success: true}, nil
}

// AddAssistant attaches a collaborator to a project. Assistants become
// members of conversations created afterwards, never of existing ones.
func (s *ProjectService) AddAssistant(projectID, userID string) error {
	if _, err := s.db.GetProject(projectID); err != nil {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if _, err := s.db.GetUserByID(userID); err != nil {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err := s.db.AddProjectAssistant(projectID, userID); err != nil {
		return fmt.Errorf("failed to add assistant: %w", err)
	}
	return nil
}

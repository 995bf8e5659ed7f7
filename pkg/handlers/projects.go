package handlers

import (
	"errors"
	"net/http"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"

	"project-collab-backend/pkg/middleware"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/utils"
)

// ProjectsHandler exposes project CRUD over HTTP. Role checks happen here;
// the service layer trusts its callers.
type ProjectsHandler struct {
	projects *services.ProjectService
}

// NewProjectsHandler 创建项目处理器
func NewProjectsHandler(projects *services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// POST /projects
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthData(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if !auth.CanManageProjects() {
		utils.WriteForbiddenResponse(w, "Only customers and admins can create projects")
		return
	}

	var req models.CreateProjectRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Location) == "" {
		utils.WriteBadRequestResponse(w, "Name and location are required")
		return
	}

	project, err := h.projects.Create(auth.UserID, &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidArgument) {
			utils.WriteBadRequestResponse(w, err.Error())
			return
		}
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, project)
}

// GET /projects/{id}
func (h *ProjectsHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	id := chiRoute.URLParam(r, "id")

	project, err := h.projects.FindOne(id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Project not found")
			return
		}
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, project)
}

// GET /projects
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.FindAll()
	if err != nil {
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, projects)
}

// PUT /projects/{id}
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chiRoute.URLParam(r, "id")

	var req models.UpdateProjectRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	project, err := h.projects.Update(id, &req)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Project not found")
			return
		}
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, project)
}

// POST /projects/{id}/assistants
func (h *ProjectsHandler) AddAssistant(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthData(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if !auth.CanManageProjects() {
		utils.WriteForbiddenResponse(w, "Only customers and admins can manage assistants")
		return
	}

	var req models.AddAssistantRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		utils.WriteValidationErrorResponse(w, "Validation failed", "userId is required")
		return
	}

	id := chiRoute.URLParam(r, "id")
	if err := h.projects.AddAssistant(id, req.UserID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.WriteNotFoundResponse(w, err.Error())
			return
		}
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]bool{"success": true})
}

// DELETE /projects/{id}
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthData(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if !auth.IsAdmin() {
		utils.WriteForbiddenResponse(w, "Only admins can delete projects")
		return
	}

	id := chiRoute.URLParam(r, "id")
	result, err := h.projects.Delete(id)
	if err != nil {
		utils.WriteAbortedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, result)
}

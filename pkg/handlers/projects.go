package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/auth"
	"github.com/taskora-inc/taskora-engine/pkg/logging"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/services"
)

// ProjectsHandler handles project CRUD. Every read or mutation passes
// through the access gateway first.
type ProjectsHandler struct {
	projects services.ProjectService
	gateway  services.AccessGateway
	logger   *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projects services.ProjectService, gateway services.AccessGateway, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{projects: projects, gateway: gateway, logger: logger}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/projects", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/projects", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/projects/{id}", authMiddleware.OptionalAuth(h.Get))
	mux.HandleFunc("PATCH /api/projects/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/projects/{id}", authMiddleware.RequireAuth(h.Delete))
}

type createProjectRequest struct {
	Name string `json:"name"`
}

type updateProjectRequest struct {
	Name            *string                 `json:"name,omitempty"`
	IsPublic        *bool                   `json:"is_public,omitempty"`
	WorkspaceShared *bool                   `json:"workspace_shared,omitempty"`
	Settings        *models.ProjectSettings `json:"settings,omitempty"`
}

// Create creates a project owned by the caller.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	project, err := h.projects.Create(r.Context(), principal, req.Name)
	if err != nil {
		h.logger.Error("Failed to create project", zap.String("error", logging.SanitizeError(err)))
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, project)
}

// List returns the projects the caller owns or is a member of.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	projects, err := h.projects.ListForUser(r.Context(), principal.ID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, projects)
}

// Get returns a project if the caller may view it, through a session, a
// sharing flag or a presented share token.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromPath(r, models.ResourceKindProject)
	if !ok {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	actor := actorFromContext(r)
	decision, err := h.gateway.Authorize(r.Context(), actor, ref, services.ActionView)
	if err != nil {
		h.logger.Error("Authorization failed", zap.String("error", logging.SanitizeError(err)))
		WriteServiceError(w, err)
		return
	}
	if !decision.Allowed {
		WriteDenied(w, decision)
		return
	}

	project, err := h.projects.Get(r.Context(), ref.ID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, project)
}

// Update changes a project's name, sharing flags or settings.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromPath(r, models.ResourceKindProject)
	if !ok {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	decision, err := h.gateway.Authorize(r.Context(), actorFromContext(r), ref, services.ActionEditResource)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if !decision.Allowed {
		WriteDenied(w, decision)
		return
	}

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	project, err := h.projects.Get(r.Context(), ref.ID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.IsPublic != nil {
		project.IsPublic = *req.IsPublic
	}
	if req.WorkspaceShared != nil {
		project.WorkspaceShared = *req.WorkspaceShared
	}
	if req.Settings != nil {
		project.Settings = *req.Settings
	}

	if err := h.projects.Update(r.Context(), project); err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, project)
}

// Delete removes a project.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromPath(r, models.ResourceKindProject)
	if !ok {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	decision, err := h.gateway.Authorize(r.Context(), actorFromContext(r), ref, services.ActionEditResource)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if !decision.Allowed {
		WriteDenied(w, decision)
		return
	}

	if err := h.projects.Delete(r.Context(), ref.ID); err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// actorFromContext builds the gateway actor from whatever identity the
// request carried.
func actorFromContext(r *http.Request) services.Actor {
	principal, _ := auth.GetPrincipal(r.Context())
	return services.Actor{
		Principal:  principal,
		ShareToken: auth.GetShareToken(r.Context()),
	}
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/auth"
	"github.com/taskora-inc/taskora-engine/pkg/logging"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/services"
)

type DashboardsHandler struct {
	dashboards services.DashboardService
	gateway    services.AccessGateway
	logger     *zap.Logger
}

// NewDashboardsHandler creates a new dashboards handler.
func NewDashboardsHandler(dashboards services.DashboardService, gateway services.AccessGateway, logger *zap.Logger) *DashboardsHandler {
	return &DashboardsHandler{dashboards: dashboards, gateway: gateway, logger: logger}
}

// RegisterRoutes registers the dashboards handler's routes on the given mux.
func (h *DashboardsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/dashboards", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/dashboards", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/dashboards/{id}", authMiddleware.OptionalAuth(h.Get))
	mux.HandleFunc("PATCH /api/dashboards/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/dashboards/{id}", authMiddleware.RequireAuth(h.Delete))
}

type createDashboardRequest struct {
	Name      string     `json:"name"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
}

type updateDashboardRequest struct {
	Name            *string                   `json:"name,omitempty"`
	IsPublic        *bool                     `json:"is_public,omitempty"`
	WorkspaceShared *bool                     `json:"workspace_shared,omitempty"`
	Settings        *models.DashboardSettings `json:"settings,omitempty"`
}

func (h *DashboardsHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req createDashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	dashboard, err := h.dashboards.Create(r.Context(), principal, req.Name, req.ProjectID)
	if err != nil {
		h.logger.Error("Failed to create dashboard", zap.String("error", logging.SanitizeError(err)))
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, dashboard)
}

func (h *DashboardsHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	dashboards, err := h.dashboards.ListForUser(r.Context(), principal.ID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, dashboards)
}

func (h *DashboardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromPath(r, models.ResourceKindDashboard)
	if !ok {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	decision, err := h.gateway.Authorize(r.Context(), actorFromContext(r), ref, services.ActionView)
	if err != nil {
		h.logger.Error("Authorization failed", zap.String("error", logging.SanitizeError(err)))
		WriteServiceError(w, err)
		return
	}
	if !decision.Allowed {
		WriteDenied(w, decision)
		return
	}

	dashboard, err := h.dashboards.Get(r.Context(), ref.ID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, dashboard)
}

func (h *DashboardsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromPath(r, models.ResourceKindDashboard)
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

	var req updateDashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	dashboard, err := h.dashboards.Get(r.Context(), ref.ID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if req.Name != nil {
		dashboard.Name = *req.Name
	}
	if req.IsPublic != nil {
		dashboard.IsPublic = *req.IsPublic
	}
	if req.WorkspaceShared != nil {
		dashboard.WorkspaceShared = *req.WorkspaceShared
	}
	if req.Settings != nil {
		dashboard.Settings = *req.Settings
	}

	if err := h.dashboards.Update(r.Context(), dashboard); err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, dashboard)
}

func (h *DashboardsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromPath(r, models.ResourceKindDashboard)
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

	if err := h.dashboards.Delete(r.Context(), ref.ID); err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

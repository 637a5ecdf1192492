package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/auth"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/services"
)

// MembersHandler handles membership listing and management on projects
// and dashboards.
type MembersHandler struct {
	members services.MemberService
	gateway services.AccessGateway
	logger  *zap.Logger
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(members services.MemberService, gateway services.AccessGateway, logger *zap.Logger) *MembersHandler {
	return &MembersHandler{members: members, gateway: gateway, logger: logger}
}

// RegisterRoutes registers the members handler's routes on the given mux.
func (h *MembersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	for kind, prefix := range map[string]string{
		models.ResourceKindProject:   "/api/projects",
		models.ResourceKindDashboard: "/api/dashboards",
	} {
		kind := kind
		mux.HandleFunc("GET "+prefix+"/{id}/members", authMiddleware.RequireAuth(h.list(kind)))
		mux.HandleFunc("PUT "+prefix+"/{id}/members/{userID}", authMiddleware.RequireAuth(h.add(kind)))
		mux.HandleFunc("DELETE "+prefix+"/{id}/members/{userID}", authMiddleware.RequireAuth(h.remove(kind)))
	}
}

type addMemberRequest struct {
	Role string `json:"role"`
}

func (h *MembersHandler) list(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := refFromPath(r, kind)
		if !ok {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
			return
		}

		decision, err := h.gateway.Authorize(r.Context(), actorFromContext(r), ref, services.ActionViewMembers)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if !decision.Allowed {
			WriteDenied(w, decision)
			return
		}

		memberships, err := h.members.List(r.Context(), ref)
		if err != nil {
			WriteServiceError(w, err)
			return
		}

		_ = WriteJSON(w, http.StatusOK, memberships)
	}
}

func (h *MembersHandler) add(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := refFromPath(r, kind)
		if !ok {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
			return
		}
		userID, ok := userIDFromPath(r)
		if !ok {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid user ID")
			return
		}

		decision, err := h.gateway.Authorize(r.Context(), actorFromContext(r), ref, services.ActionManageMembers)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if !decision.Allowed {
			WriteDenied(w, decision)
			return
		}

		var req addMemberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
			return
		}

		if err := h.members.Add(r.Context(), ref, userID, req.Role); err != nil {
			WriteServiceError(w, err)
			return
		}

		_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "added"})
	}
}

func (h *MembersHandler) remove(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := refFromPath(r, kind)
		if !ok {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
			return
		}
		userID, ok := userIDFromPath(r)
		if !ok {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid user ID")
			return
		}

		decision, err := h.gateway.Authorize(r.Context(), actorFromContext(r), ref, services.ActionManageMembers)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if !decision.Allowed {
			WriteDenied(w, decision)
			return
		}

		if err := h.members.Remove(r.Context(), ref, userID); err != nil {
			WriteServiceError(w, err)
			return
		}

		_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}

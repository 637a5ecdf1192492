package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/auth"
	"github.com/taskora-inc/taskora-engine/pkg/logging"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/services"
)

// SharesHandler handles share-link rotation and resolution.
type SharesHandler struct {
	tokens services.TokenService
	logger *zap.Logger
}

// NewSharesHandler creates a new shares handler.
func NewSharesHandler(tokens services.TokenService, logger *zap.Logger) *SharesHandler {
	return &SharesHandler{tokens: tokens, logger: logger}
}

// RegisterRoutes registers the shares handler's routes on the given mux.
func (h *SharesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/projects/{id}/share-token", authMiddleware.RequireAuth(h.rotate(models.ResourceKindProject)))
	mux.HandleFunc("POST /api/dashboards/{id}/share-token", authMiddleware.RequireAuth(h.rotate(models.ResourceKindDashboard)))
	mux.HandleFunc("GET /api/shared/{kind}/{token}", h.Resolve)
}

type shareTokenResponse struct {
	ShareToken string `json:"share_token"`
}

// rotate mints a fresh share token for the resource, invalidating any
// previously issued one.
func (h *SharesHandler) rotate(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := auth.RequirePrincipal(r.Context())
		if err != nil {
			_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		ref, ok := refFromPath(r, kind)
		if !ok {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
			return
		}

		token, err := h.tokens.RotateShareToken(r.Context(), principal, ref)
		if err != nil {
			h.logger.Error("Failed to rotate share token", zap.String("error", logging.SanitizeError(err)))
			WriteServiceError(w, err)
			return
		}

		_ = WriteJSON(w, http.StatusOK, shareTokenResponse{ShareToken: token})
	}
}

type sharedResourceResponse struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Resolve looks up the resource behind a share link. It answers 404 for
// unknown tokens so the response does not confirm a resource exists.
func (h *SharesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	token := r.PathValue("token")
	if kind != models.ResourceKindProject && kind != models.ResourceKindDashboard {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	access, err := h.tokens.ResolveShareToken(r.Context(), kind, token)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, sharedResourceResponse{
		Kind: access.Ref.Kind,
		ID:   access.Ref.ID.String(),
	})
}

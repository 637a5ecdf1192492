package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/auth"
	"github.com/taskora-inc/taskora-engine/pkg/logging"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/services"
)

// InvitesHandler handles invitation creation and acceptance.
type InvitesHandler struct {
	tokens   services.TokenService
	notifier services.Notifier
	logger   *zap.Logger
}

// NewInvitesHandler creates a new invites handler.
func NewInvitesHandler(tokens services.TokenService, notifier services.Notifier, logger *zap.Logger) *InvitesHandler {
	return &InvitesHandler{tokens: tokens, notifier: notifier, logger: logger}
}

// RegisterRoutes registers the invites handler's routes on the given mux.
func (h *InvitesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/projects/{id}/invites", authMiddleware.RequireAuth(h.create(models.ResourceKindProject)))
	mux.HandleFunc("POST /api/dashboards/{id}/invites", authMiddleware.RequireAuth(h.create(models.ResourceKindDashboard)))
	mux.HandleFunc("GET /invites/{token}", authMiddleware.OptionalAuth(h.Accept))
	mux.HandleFunc("POST /api/invites/accept", authMiddleware.RequireAuth(h.AcceptParked))
}

type createInviteRequest struct {
	Email      string `json:"email"`
	Permission string `json:"permission"`
	TTLDays    int    `json:"ttl_days,omitempty"`
}

type inviteResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
	ExpiresAt  string `json:"expires_at"`
	AcceptURL  string `json:"accept_url"`
}

func (h *InvitesHandler) create(kind string) http.HandlerFunc {
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

		var req createInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
			return
		}

		inv, err := h.tokens.Invite(r.Context(), principal, ref, req.Email, req.Permission, req.TTLDays)
		if err != nil {
			h.logger.Error("Failed to create invitation", zap.String("error", logging.SanitizeError(err)))
			WriteServiceError(w, err)
			return
		}

		acceptURL := acceptURLFor(r, inv.Token)
		if err := h.notifier.Notify(r.Context(), inv.TargetEmail, acceptURL); err != nil {
			// The invitation exists regardless; delivery is best effort.
			h.logger.Warn("Failed to send invitation notification",
				zap.String("error", logging.SanitizeError(err)))
		}

		_ = WriteJSON(w, http.StatusCreated, inviteResponse{
			ID:         inv.ID.String(),
			Email:      inv.TargetEmail,
			Permission: inv.Permission,
			ExpiresAt:  inv.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
			AcceptURL:  acceptURL,
		})
	}
}

// Accept consumes an invitation link. An anonymous visitor has the token
// parked in a short-lived cookie and is redirected to authentication; the
// parked token is replayed through AcceptParked after login.
func (h *InvitesHandler) Accept(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Invitation not found")
		return
	}

	principal, ok := auth.GetPrincipal(r.Context())
	if !ok || principal == nil {
		session, err := auth.GetReplaySession(r)
		if err == nil {
			session.Values[auth.ReplayKeyInviteToken] = token
			session.Values[auth.ReplayKeyReturnURL] = r.URL.RequestURI()
			if err := session.Save(r, w); err != nil {
				h.logger.Warn("Failed to park invite token",
					zap.String("error", logging.SanitizeError(err)))
			}
		}
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	h.accept(w, r, token, principal)
}

// AcceptParked replays an invite token parked before authentication.
func (h *InvitesHandler) AcceptParked(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	session, err := auth.GetReplaySession(r)
	if err != nil {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "No pending invitation")
		return
	}

	token, _ := session.Values[auth.ReplayKeyInviteToken].(string)
	if token == "" {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "No pending invitation")
		return
	}

	auth.ClearReplayValues(session)
	if err := session.Save(r, w); err != nil {
		h.logger.Warn("Failed to clear invite replay session",
			zap.String("error", logging.SanitizeError(err)))
	}

	h.accept(w, r, token, principal)
}

func (h *InvitesHandler) accept(w http.ResponseWriter, r *http.Request, token string, principal *models.Principal) {
	membership, err := h.tokens.Accept(r.Context(), token, principal)
	if err != nil {
		h.logger.Info("Invitation accept rejected",
			zap.String("user_id", principal.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, membership)
}

func acceptURLFor(r *http.Request, token string) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/invites/%s", scheme, r.Host, token)
}

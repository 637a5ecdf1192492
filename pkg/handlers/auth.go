package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/auth"
	"github.com/taskora-inc/taskora-engine/pkg/config"
	"github.com/taskora-inc/taskora-engine/pkg/logging"
	"github.com/taskora-inc/taskora-engine/pkg/services"
)

// AuthHandler handles signup, login and logout.
type AuthHandler struct {
	users  services.UserService
	tokens services.TokenService
	cfg    *config.Config
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users services.UserService, tokens services.TokenService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, cfg: cfg, logger: logger}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signup", h.Signup)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	user, err := h.users.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Signup failed", zap.String("error", logging.SanitizeError(err)))
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and issues a session token. The token is
// returned in the body for API clients and set as a cookie for browsers.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	token, principal, err := h.tokens.IssueSession(r.Context(), req.Email, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.cfg.Auth.SessionTTLHours * 3600,
		HttpOnly: true,
		Secure:   h.cfg.Auth.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	_ = WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  principal,
	})
}

// Logout revokes the presented session and clears the cookie. Idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.tokens.RevokeSession(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("Failed to revoke session", zap.String("error", logging.SanitizeError(err)))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Auth.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

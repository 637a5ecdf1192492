package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/services"
)

// SessionCookieName is the cookie browser clients carry the session token in.
const SessionCookieName = "taskora_session"

// ShareTokenParam is the query parameter public share links carry.
const ShareTokenParam = "share_token"

// Middleware provides HTTP authentication middleware. It is thin and
// delegates session validation to TokenService.
type Middleware struct {
	tokens services.TokenService
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(tokens services.TokenService, logger *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// tokenFromRequest extracts the session token from the request. Browser
// clients use the session cookie; API clients the Authorization header with
// Bearer scheme.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// RequireAuth validates the session token and sets the principal in context.
// Requests without a valid session get 401.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			m.unauthorized(w, "Authentication required")
			return
		}

		principal, err := m.tokens.ValidateSession(r.Context(), token)
		if err != nil {
			m.logger.Debug("Session validation failed",
				zap.String("path", r.URL.Path))
			m.unauthorized(w, "Authentication required")
			return
		}

		next(w, r.WithContext(SetPrincipal(r.Context(), principal)))
	}
}

// OptionalAuth resolves the principal when a valid session is present and
// passes the request through either way. A share_token query parameter is
// also captured for the gateway. Use for endpoints reachable through public
// sharing.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if token := tokenFromRequest(r); token != "" {
			if principal, err := m.tokens.ValidateSession(ctx, token); err == nil {
				ctx = SetPrincipal(ctx, principal)
			}
			// An invalid session on a public path degrades to anonymous
			// rather than failing; the gateway decides what that may see.
		}

		if share := r.URL.Query().Get(ShareTokenParam); share != "" {
			ctx = SetShareToken(ctx, share)
		}

		next(w, r.WithContext(ctx))
	}
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}

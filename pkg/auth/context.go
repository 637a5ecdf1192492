// Package auth provides the HTTP plumbing that turns a session token into a
// Principal: extraction middleware, context helpers and the invite-replay
// cookie session.
package auth

import (
	"context"
	"fmt"

	"github.com/taskora-inc/taskora-engine/pkg/models"
)

type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal.
	PrincipalKey contextKey = "principal"
	// ShareTokenKey is the context key for a presented share token.
	ShareTokenKey contextKey = "shareToken"
)

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil and false for anonymous requests.
func GetPrincipal(ctx context.Context) (*models.Principal, bool) {
	principal, ok := ctx.Value(PrincipalKey).(*models.Principal)
	return principal, ok && principal != nil
}

// SetPrincipal stores the authenticated principal in the context.
func SetPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// RequirePrincipal extracts the principal or errors if the request is
// anonymous. Use in services where authentication is a precondition.
func RequirePrincipal(ctx context.Context) (*models.Principal, error) {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return nil, fmt.Errorf("principal not found in context")
	}
	return principal, nil
}

// GetShareToken extracts a presented share token from the context.
// Returns empty string when the request carried none.
func GetShareToken(ctx context.Context) string {
	token, _ := ctx.Value(ShareTokenKey).(string)
	return token
}

// SetShareToken stores a presented share token in the context.
func SetShareToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ShareTokenKey, token)
}

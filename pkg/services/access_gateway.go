package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/models"
)

// Action is an operation a caller wants to perform on a resource.
type Action string

const (
	ActionView          Action = "view"
	ActionComment       Action = "comment"
	ActionEditContent   Action = "edit_content"
	ActionEditResource  Action = "edit_resource"
	ActionManageMembers Action = "manage_members"
	ActionViewMembers   Action = "view_members"
)

// DenyReason distinguishes the two external deny outcomes. NotFound is used
// whenever disclosing a resource's existence would itself be a leak.
type DenyReason string

const (
	DenyNotFound  DenyReason = "not_found"
	DenyForbidden DenyReason = "forbidden"
)

// Actor is the identity a request carries: a principal from a session token,
// a share token, both, or neither.
type Actor struct {
	Principal  *models.Principal
	ShareToken string
}

// Anonymous reports whether the actor carries no session identity.
func (a Actor) Anonymous() bool { return a.Principal == nil }

// Decision is the terminal outcome of an authorization request.
type Decision struct {
	Allowed bool
	Grant   *models.Grant
	Reason  DenyReason
}

func allow(grant *models.Grant) *Decision { return &Decision{Allowed: true, Grant: grant} }
func deny(reason DenyReason) *Decision    { return &Decision{Reason: reason} }

// AccessGateway is the single entry point route handlers call before any
// mutation or read of resource data. No side effect may happen before the
// decision resolves.
type AccessGateway interface {
	Authorize(ctx context.Context, actor Actor, ref models.ResourceRef, action Action) (*Decision, error)
}

// accessGateway implements AccessGateway by composing RoleResolver and
// TokenService. All underlying lookups go through schemaguard-wrapped
// repositories, so a missing-column failure costs one repair cycle instead
// of a hard failure.
type accessGateway struct {
	resolver RoleResolver
	tokens   TokenService
	logger   *zap.Logger
}

// NewAccessGateway creates a new access gateway.
func NewAccessGateway(resolver RoleResolver, tokens TokenService, logger *zap.Logger) AccessGateway {
	return &accessGateway{resolver: resolver, tokens: tokens, logger: logger}
}

// Authorize resolves a grant for the actor and checks the action against it.
// Expected denials come back as a Decision; only hard failures (store
// unreachable, unrepairable drift) return a non-nil error.
func (g *accessGateway) Authorize(ctx context.Context, actor Actor, ref models.ResourceRef, action Action) (*Decision, error) {
	if !models.IsValidResourceKind(ref.Kind) {
		return deny(DenyNotFound), nil
	}

	grant, err := g.resolver.Resolve(ctx, actor.Principal, ref)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		return deny(DenyNotFound), nil
	case errors.Is(err, apperrors.ErrForbidden):
		if actor.ShareToken != "" {
			return g.authorizeByShareToken(ctx, actor, ref, action)
		}
		return g.denyUngranted(actor), nil
	default:
		return nil, fmt.Errorf("failed to resolve grant: %w", err)
	}

	return g.check(grant, action), nil
}

// authorizeByShareToken grants guest-view when a presented share token
// matches the target resource. Possession of the token is sufficient; no
// email binding applies.
func (g *accessGateway) authorizeByShareToken(ctx context.Context, actor Actor, ref models.ResourceRef, action Action) (*Decision, error) {
	access, err := g.tokens.ResolveShareToken(ctx, ref.Kind, actor.ShareToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return g.denyUngranted(actor), nil
		}
		return nil, fmt.Errorf("failed to resolve share token: %w", err)
	}
	if access.Ref != ref {
		// Token is valid for some other resource; no disclosure here either.
		return g.denyUngranted(actor), nil
	}

	return g.check(models.GuestGrant(), action), nil
}

// denyUngranted maps "no grant" to the externally visible reason.
// Unauthenticated callers always get NotFound for private resources so that
// probing cannot confirm existence.
func (g *accessGateway) denyUngranted(actor Actor) *Decision {
	if actor.Anonymous() {
		return deny(DenyNotFound)
	}
	return deny(DenyForbidden)
}

// check maps an action onto the grant's predicates. A resolved grant that
// lacks the action yields Forbidden: the caller may see the resource, so
// existence is already disclosed.
func (g *accessGateway) check(grant *models.Grant, action Action) *Decision {
	var allowed bool
	switch action {
	case ActionView:
		allowed = grant.CanView()
	case ActionComment:
		allowed = grant.CanComment()
	case ActionEditContent:
		allowed = grant.CanEditContent()
	case ActionEditResource:
		allowed = grant.CanEditResource()
	case ActionManageMembers:
		allowed = grant.CanManageMembers()
	case ActionViewMembers:
		allowed = grant.CanSeeMembers()
	default:
		allowed = false
	}

	if !allowed {
		return deny(DenyForbidden)
	}
	return allow(grant)
}

// Ensure accessGateway implements AccessGateway at compile time.
var _ AccessGateway = (*accessGateway)(nil)

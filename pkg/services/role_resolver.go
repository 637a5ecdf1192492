// Package services contains the access-control core and the thin domain
// services built on top of it.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/repositories"
)

// RoleResolver computes a principal's effective grant for a resource.
//
// Resolution is a strict precedence list, not an OR of independent checks:
// ownership dominates any membership row, membership dominates sharing flags,
// and lower tiers never combine with higher ones. This keeps a stale
// membership row on a resource's owner from ever narrowing the owner grant.
type RoleResolver interface {
	// Resolve returns the effective grant of the principal on the resource.
	// A nil principal is an anonymous caller. It returns ErrNotFound when
	// the resource does not exist and ErrForbidden when no tier grants
	// access.
	Resolve(ctx context.Context, principal *models.Principal, ref models.ResourceRef) (*models.Grant, error)
}

// roleResolver implements RoleResolver.
type roleResolver struct {
	resourceRepo   repositories.ResourceRepository
	membershipRepo repositories.MembershipRepository
}

// NewRoleResolver creates a new role resolver.
func NewRoleResolver(resourceRepo repositories.ResourceRepository, membershipRepo repositories.MembershipRepository) RoleResolver {
	return &roleResolver{
		resourceRepo:   resourceRepo,
		membershipRepo: membershipRepo,
	}
}

// Resolve applies the precedence list: owner, membership, workspace sharing,
// public sharing.
func (r *roleResolver) Resolve(ctx context.Context, principal *models.Principal, ref models.ResourceRef) (*models.Grant, error) {
	access, err := r.resourceRepo.FetchAccess(ctx, ref)
	if err != nil {
		return nil, err
	}

	if principal != nil {
		if access.OwnerID == principal.ID {
			return models.OwnerGrant(), nil
		}

		membership, err := r.membershipRepo.Get(ctx, ref, principal.ID)
		if err == nil {
			return membership.Grant(), nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve membership: %w", err)
		}

		if access.WorkspaceShared {
			return models.GuestGrant(), nil
		}
	}

	if access.IsPublic {
		return models.GuestGrant(), nil
	}

	return nil, apperrors.ErrForbidden
}

// Ensure roleResolver implements RoleResolver at compile time.
var _ RoleResolver = (*roleResolver)(nil)

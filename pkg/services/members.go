package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/repositories"
)

// MemberService defines the interface for membership management. Handlers
// authorize manage-members through AccessGateway before calling the mutating
// operations.
type MemberService interface {
	List(ctx context.Context, ref models.ResourceRef) ([]*models.Membership, error)
	// Add adds a member with the given role and no permission narrowing.
	// Directly-added members are not invitation-originated.
	Add(ctx context.Context, ref models.ResourceRef, userID uuid.UUID, role string) error
	Remove(ctx context.Context, ref models.ResourceRef, userID uuid.UUID) error
}

// memberService implements MemberService.
type memberService struct {
	membershipRepo repositories.MembershipRepository
	logger         *zap.Logger
}

// NewMemberService creates a new member service with dependencies.
func NewMemberService(membershipRepo repositories.MembershipRepository, logger *zap.Logger) MemberService {
	return &memberService{membershipRepo: membershipRepo, logger: logger}
}

func (s *memberService) List(ctx context.Context, ref models.ResourceRef) ([]*models.Membership, error) {
	return s.membershipRepo.ListByResource(ctx, ref)
}

// Add upserts a membership row. Role owner is rejected; ownership is derived
// from the resource, never stored.
func (s *memberService) Add(ctx context.Context, ref models.ResourceRef, userID uuid.UUID, role string) error {
	if !models.IsValidMembershipRole(role) {
		return apperrors.ErrInvalidRole
	}

	membership := &models.Membership{
		ResourceKind: ref.Kind,
		ResourceID:   ref.ID,
		UserID:       userID,
		Role:         role,
	}
	if err := s.membershipRepo.Upsert(ctx, membership); err != nil {
		return err
	}

	s.logger.Info("Member added",
		zap.String("resource_kind", ref.Kind),
		zap.String("resource_id", ref.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", role))
	return nil
}

func (s *memberService) Remove(ctx context.Context, ref models.ResourceRef, userID uuid.UUID) error {
	return s.membershipRepo.Remove(ctx, ref, userID)
}

// Ensure memberService implements MemberService at compile time.
var _ MemberService = (*memberService)(nil)

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/crypto"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/repositories"
)

// TokenService issues, validates and consumes bounded-lifetime tokens:
// session tokens (post-login), invitation tokens (email-bound, single-use)
// and sharing tokens (multi-use, revoked by rotation).
type TokenService interface {
	// IssueSession verifies credentials and issues an opaque session token.
	// IP and user agent are recorded for audit only.
	IssueSession(ctx context.Context, email, password, ip, userAgent string) (string, *models.Principal, error)

	// ValidateSession resolves a session token to a principal. Expired or
	// unknown tokens fail closed with ErrNotFound.
	ValidateSession(ctx context.Context, token string) (*models.Principal, error)

	// RevokeSession deletes the session row. Idempotent.
	RevokeSession(ctx context.Context, token string) error

	// Invite creates an email-bound invitation. The grantor must hold
	// manage-members rights on the resource. ttlDays of 0 uses the
	// configured default. The returned invitation carries the token value;
	// the caller hands it to the notifier.
	Invite(ctx context.Context, grantor *models.Principal, ref models.ResourceRef, email, permission string, ttlDays int) (*models.Invitation, error)

	// Accept consumes an invitation exactly once for the given principal.
	Accept(ctx context.Context, token string, principal *models.Principal) (*models.Membership, error)

	// RotateShareToken atomically replaces the resource's share token,
	// permanently invalidating the previous value.
	RotateShareToken(ctx context.Context, grantor *models.Principal, ref models.ResourceRef) (string, error)

	// ResolveShareToken resolves a presented share token to the resource it
	// grants guest-view on. Valid regardless of the caller's identity.
	ResolveShareToken(ctx context.Context, kind, token string) (*models.ResourceAccess, error)
}

// tokenService implements TokenService.
type tokenService struct {
	userRepo       repositories.UserRepository
	sessionRepo    repositories.SessionRepository
	invitationRepo repositories.InvitationRepository
	membershipRepo repositories.MembershipRepository
	resourceRepo   repositories.ResourceRepository
	resolver       RoleResolver
	logger         *zap.Logger

	sessionTTL       time.Duration
	inviteDefaultTTL time.Duration
	inviteMaxTTL     time.Duration

	// now is injected for expiry tests.
	now func() time.Time
}

// TokenServiceConfig carries token lifetime settings.
type TokenServiceConfig struct {
	SessionTTL       time.Duration
	InviteDefaultTTL time.Duration
	InviteMaxTTL     time.Duration
}

// NewTokenService creates a new token service with dependencies.
func NewTokenService(
	userRepo repositories.UserRepository,
	sessionRepo repositories.SessionRepository,
	invitationRepo repositories.InvitationRepository,
	membershipRepo repositories.MembershipRepository,
	resourceRepo repositories.ResourceRepository,
	resolver RoleResolver,
	cfg TokenServiceConfig,
	logger *zap.Logger,
) TokenService {
	return &tokenService{
		userRepo:         userRepo,
		sessionRepo:      sessionRepo,
		invitationRepo:   invitationRepo,
		membershipRepo:   membershipRepo,
		resourceRepo:     resourceRepo,
		resolver:         resolver,
		logger:           logger,
		sessionTTL:       cfg.SessionTTL,
		inviteDefaultTTL: cfg.InviteDefaultTTL,
		inviteMaxTTL:     cfg.InviteMaxTTL,
		now:              time.Now,
	}
}

// IssueSession verifies the password and stores a new session. Multiple
// concurrent sessions per user are allowed; each login issues an independent
// token.
func (s *tokenService) IssueSession(ctx context.Context, email, password, ip, userAgent string) (string, *models.Principal, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Same outcome as a wrong password so login probing cannot
			// enumerate accounts.
			return "", nil, apperrors.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !crypto.VerifyPassword(user.PasswordHash, password) {
		return "", nil, apperrors.ErrInvalidCredentials
	}

	token, err := crypto.NewToken()
	if err != nil {
		return "", nil, err
	}

	session := &models.Session{
		UserID:    user.ID,
		TokenHash: crypto.HashToken(token),
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", nil, err
	}

	s.logger.Info("Session issued", zap.String("user_id", user.ID.String()))
	return token, &models.Principal{ID: user.ID, Email: user.Email}, nil
}

// ValidateSession resolves a token to its principal, failing closed on expiry.
func (s *tokenService) ValidateSession(ctx context.Context, token string) (*models.Principal, error) {
	session, email, err := s.sessionRepo.GetWithEmail(ctx, crypto.HashToken(token))
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		return nil, apperrors.ErrNotFound
	}

	return &models.Principal{ID: session.UserID, Email: email}, nil
}

// RevokeSession deletes the session row for the token.
func (s *tokenService) RevokeSession(ctx context.Context, token string) error {
	return s.sessionRepo.Delete(ctx, crypto.HashToken(token))
}

// Invite creates an invitation after checking the grantor's rights.
func (s *tokenService) Invite(ctx context.Context, grantor *models.Principal, ref models.ResourceRef, email, permission string, ttlDays int) (*models.Invitation, error) {
	if !models.IsValidPermission(permission) {
		return nil, apperrors.ErrInvalidPermission
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("invitation email must not be empty")
	}

	grant, err := s.resolver.Resolve(ctx, grantor, ref)
	if err != nil {
		return nil, err
	}
	if !grant.CanManageMembers() {
		return nil, apperrors.ErrForbidden
	}

	ttl := s.inviteDefaultTTL
	if ttlDays > 0 {
		ttl = time.Duration(ttlDays) * 24 * time.Hour
		if ttl > s.inviteMaxTTL {
			ttl = s.inviteMaxTTL
		}
	}

	token, err := crypto.NewToken()
	if err != nil {
		return nil, err
	}

	inv := &models.Invitation{
		Token:        token,
		ResourceKind: ref.Kind,
		ResourceID:   ref.ID,
		TargetEmail:  strings.ToLower(email),
		Permission:   permission,
		InvitedBy:    grantor.ID,
		ExpiresAt:    s.now().Add(ttl),
	}
	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("Invitation created",
		zap.String("resource_kind", ref.Kind),
		zap.String("resource_id", ref.ID.String()),
		zap.String("invited_by", grantor.ID.String()))
	return inv, nil
}

// Accept consumes an invitation for the principal. The accepted_at transition
// in the store serializes concurrent attempts: exactly one caller wins; the
// loser sees ErrConflict. Membership creation is idempotent, so accepting on
// behalf of an existing member marks the invitation accepted without touching
// the row.
func (s *tokenService) Accept(ctx context.Context, token string, principal *models.Principal) (*models.Membership, error) {
	inv, err := s.invitationRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	// An accepted invitation is inert even when presented again.
	if inv.AcceptedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	if inv.Expired(s.now()) {
		return nil, apperrors.ErrExpired
	}
	if !inv.MatchesEmail(principal.Email) {
		return nil, apperrors.ErrEmailMismatch
	}

	// Membership before consumption. If the second step fails, the
	// invitation stays open and a retry converges; consuming first would
	// burn the token with no membership to show for it.
	permission := inv.Permission
	membership := &models.Membership{
		ResourceKind: inv.ResourceKind,
		ResourceID:   inv.ResourceID,
		UserID:       principal.ID,
		Role:         models.RoleMember,
		Permission:   &permission,
	}
	created, err := s.membershipRepo.CreateIfAbsent(ctx, membership)
	if err != nil {
		return nil, err
	}
	if !created {
		// Invitee was already a member; the existing row, including any
		// differing permission, is left untouched.
		existing, err := s.membershipRepo.Get(ctx, inv.Ref(), principal.ID)
		if err != nil {
			return nil, err
		}
		membership = existing
	}

	won, err := s.invitationRepo.MarkAccepted(ctx, token, s.now())
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.ErrConflict
	}

	s.logger.Info("Invitation accepted",
		zap.String("resource_kind", inv.ResourceKind),
		zap.String("resource_id", inv.ResourceID.String()),
		zap.String("user_id", principal.ID.String()),
		zap.Bool("membership_created", created))
	return membership, nil
}

// RotateShareToken replaces the resource's share token in one statement.
func (s *tokenService) RotateShareToken(ctx context.Context, grantor *models.Principal, ref models.ResourceRef) (string, error) {
	grant, err := s.resolver.Resolve(ctx, grantor, ref)
	if err != nil {
		return "", err
	}
	if !grant.CanManageMembers() {
		return "", apperrors.ErrForbidden
	}

	token, err := crypto.NewToken()
	if err != nil {
		return "", err
	}
	if err := s.resourceRepo.SetShareToken(ctx, ref, token); err != nil {
		return "", err
	}

	s.logger.Info("Share token rotated",
		zap.String("resource_kind", ref.Kind),
		zap.String("resource_id", ref.ID.String()))
	return token, nil
}

// ResolveShareToken looks up the resource a share token points at.
func (s *tokenService) ResolveShareToken(ctx context.Context, kind, token string) (*models.ResourceAccess, error) {
	if token == "" {
		return nil, apperrors.ErrNotFound
	}
	return s.resourceRepo.FindByShareToken(ctx, kind, token)
}

// Ensure tokenService implements TokenService at compile time.
var _ TokenService = (*tokenService)(nil)

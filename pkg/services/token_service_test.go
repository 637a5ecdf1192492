package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/crypto"
	"github.com/taskora-inc/taskora-engine/pkg/models"
)

// tokenFixture wires a token service against in-memory stores with a
// controllable clock.
type tokenFixture struct {
	users       *mockUserRepository
	sessions    *mockSessionRepository
	invitations *mockInvitationRepository
	memberships *mockMembershipRepository
	resources   *mockResourceRepository
	svc         *tokenService
	clock       time.Time
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	f := &tokenFixture{
		users:       &mockUserRepository{},
		invitations: newMockInvitationRepository(),
		memberships: newMockMembershipRepository(),
		resources:   newMockResourceRepository(),
		clock:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.sessions = newMockSessionRepository(f.users)

	resolver := NewRoleResolver(f.resources, f.memberships)
	svc := NewTokenService(
		f.users, f.sessions, f.invitations, f.memberships, f.resources,
		resolver,
		TokenServiceConfig{
			SessionTTL:       168 * time.Hour,
			InviteDefaultTTL: 7 * 24 * time.Hour,
			InviteMaxTTL:     30 * 24 * time.Hour,
		},
		zap.NewNop(),
	)
	f.svc = svc.(*tokenService)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *tokenFixture) addUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: email, PasswordHash: hash}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *tokenFixture) addProject(ownerID uuid.UUID) models.ResourceRef {
	ref := models.ProjectRef(uuid.New())
	f.resources.add(&models.ResourceAccess{Ref: ref, OwnerID: ownerID})
	return ref
}

func TestTokenService_SessionRoundTrip(t *testing.T) {
	f := newTokenFixture(t)
	user := f.addUser(t, "alice@example.com", "correct horse battery")

	token, principal, err := f.svc.IssueSession(context.Background(), "alice@example.com", "correct horse battery", "127.0.0.1", "go-test")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, user.ID, principal.ID)

	resolved, err := f.svc.ValidateSession(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, "alice@example.com", resolved.Email)

	require.NoError(t, f.svc.RevokeSession(context.Background(), token))
	_, err = f.svc.ValidateSession(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Revoking again is a no-op.
	require.NoError(t, f.svc.RevokeSession(context.Background(), token))
}

func TestTokenService_SessionExpiry(t *testing.T) {
	f := newTokenFixture(t)
	f.addUser(t, "alice@example.com", "correct horse battery")

	token, _, err := f.svc.IssueSession(context.Background(), "alice@example.com", "correct horse battery", "", "")
	require.NoError(t, err)

	f.clock = f.clock.Add(167 * time.Hour)
	_, err = f.svc.ValidateSession(context.Background(), token)
	require.NoError(t, err)

	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.svc.ValidateSession(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// Wrong password and unknown account produce the identical error so login
// probing cannot enumerate accounts.
func TestTokenService_InvalidCredentials(t *testing.T) {
	f := newTokenFixture(t)
	f.addUser(t, "alice@example.com", "correct horse battery")

	_, _, err := f.svc.IssueSession(context.Background(), "alice@example.com", "wrong", "", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, _, err = f.svc.IssueSession(context.Background(), "nobody@example.com", "whatever", "", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestTokenService_InviteAndAccept(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	invitee := f.addUser(t, "bob@example.com", "bob password")
	ref := f.addProject(owner.ID)

	ownerPrincipal := &models.Principal{ID: owner.ID, Email: owner.Email}
	inv, err := f.svc.Invite(context.Background(), ownerPrincipal, ref, "Bob@Example.com", models.PermissionEdit, 0)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", inv.TargetEmail)
	assert.Equal(t, f.clock.Add(7*24*time.Hour), inv.ExpiresAt)
	require.NotEmpty(t, inv.Token)

	bobPrincipal := &models.Principal{ID: invitee.ID, Email: invitee.Email}
	membership, err := f.svc.Accept(context.Background(), inv.Token, bobPrincipal)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, membership.Role)
	require.NotNil(t, membership.Permission)
	assert.Equal(t, models.PermissionEdit, *membership.Permission)

	// The consumed token is inert on re-presentation.
	_, err = f.svc.Accept(context.Background(), inv.Token, bobPrincipal)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTokenService_InviteRequiresManageMembers(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	member := f.addUser(t, "member@example.com", "member password")
	ref := f.addProject(owner.ID)

	f.memberships.add(&models.Membership{
		ResourceKind: ref.Kind,
		ResourceID:   ref.ID,
		UserID:       member.ID,
		Role:         models.RoleMember,
	})

	memberPrincipal := &models.Principal{ID: member.ID, Email: member.Email}
	_, err := f.svc.Invite(context.Background(), memberPrincipal, ref, "x@example.com", models.PermissionView, 0)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestTokenService_InviteTTLClamp(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	ref := f.addProject(owner.ID)
	principal := &models.Principal{ID: owner.ID, Email: owner.Email}

	inv, err := f.svc.Invite(context.Background(), principal, ref, "a@example.com", models.PermissionView, 365)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Add(30*24*time.Hour), inv.ExpiresAt)

	_, err = f.svc.Invite(context.Background(), principal, ref, "a@example.com", "superuser", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidPermission)
}

func TestTokenService_AcceptExpired(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	invitee := f.addUser(t, "bob@example.com", "bob password")
	ref := f.addProject(owner.ID)

	inv, err := f.svc.Invite(context.Background(), &models.Principal{ID: owner.ID, Email: owner.Email}, ref, invitee.Email, models.PermissionView, 1)
	require.NoError(t, err)

	f.clock = f.clock.Add(25 * time.Hour)
	_, err = f.svc.Accept(context.Background(), inv.Token, &models.Principal{ID: invitee.ID, Email: invitee.Email})
	assert.ErrorIs(t, err, apperrors.ErrExpired)
}

func TestTokenService_AcceptEmailMismatch(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	other := f.addUser(t, "mallory@example.com", "mallory password")
	ref := f.addProject(owner.ID)

	inv, err := f.svc.Invite(context.Background(), &models.Principal{ID: owner.ID, Email: owner.Email}, ref, "bob@example.com", models.PermissionView, 0)
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), inv.Token, &models.Principal{ID: other.ID, Email: other.Email})
	assert.ErrorIs(t, err, apperrors.ErrEmailMismatch)

	// The failed attempt must not consume the invitation.
	stored, err := f.invitations.GetByToken(context.Background(), inv.Token)
	require.NoError(t, err)
	assert.Nil(t, stored.AcceptedAt)
}

// Accepting on behalf of an existing member consumes the invitation but
// leaves the membership row, including its permission, untouched.
func TestTokenService_AcceptExistingMember(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	invitee := f.addUser(t, "bob@example.com", "bob password")
	ref := f.addProject(owner.ID)

	fullEdit := models.PermissionFullEdit
	f.memberships.add(&models.Membership{
		ResourceKind: ref.Kind,
		ResourceID:   ref.ID,
		UserID:       invitee.ID,
		Role:         models.RoleAdmin,
		Permission:   &fullEdit,
	})

	inv, err := f.svc.Invite(context.Background(), &models.Principal{ID: owner.ID, Email: owner.Email}, ref, invitee.Email, models.PermissionView, 0)
	require.NoError(t, err)

	membership, err := f.svc.Accept(context.Background(), inv.Token, &models.Principal{ID: invitee.ID, Email: invitee.Email})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, membership.Role)
	require.NotNil(t, membership.Permission)
	assert.Equal(t, models.PermissionFullEdit, *membership.Permission)

	stored, err := f.invitations.GetByToken(context.Background(), inv.Token)
	require.NoError(t, err)
	assert.NotNil(t, stored.AcceptedAt)
}

// Concurrent accepts of the same token: exactly one wins, every loser sees
// the conflict error, and exactly one membership row exists afterwards.
func TestTokenService_AcceptConcurrent(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	invitee := f.addUser(t, "bob@example.com", "bob password")
	ref := f.addProject(owner.ID)

	inv, err := f.svc.Invite(context.Background(), &models.Principal{ID: owner.ID, Email: owner.Email}, ref, invitee.Email, models.PermissionComment, 0)
	require.NoError(t, err)

	principal := &models.Principal{ID: invitee.ID, Email: invitee.Email}
	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Accept(context.Background(), inv.Token, principal)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		if !assert.True(t, err == apperrors.ErrConflict || err == apperrors.ErrNotFound, "unexpected error: %v", err) {
			t.FailNow()
		}
	}
	assert.Equal(t, 1, wins)

	rows, err := f.memberships.ListByResource(context.Background(), ref)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// A store failure while granting the membership must leave the invitation
// unconsumed so a retry can complete the acceptance.
func TestTokenService_AcceptStoreFailureLeavesInvitationOpen(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	invitee := f.addUser(t, "bob@example.com", "bob password")
	ref := f.addProject(owner.ID)

	inv, err := f.svc.Invite(context.Background(), &models.Principal{ID: owner.ID, Email: owner.Email}, ref, invitee.Email, models.PermissionView, 0)
	require.NoError(t, err)

	storeErr := errors.New("connection reset by peer")
	f.memberships.createErr = storeErr

	principal := &models.Principal{ID: invitee.ID, Email: invitee.Email}
	_, err = f.svc.Accept(context.Background(), inv.Token, principal)
	require.ErrorIs(t, err, storeErr)

	stored, err := f.invitations.GetByToken(context.Background(), inv.Token)
	require.NoError(t, err)
	assert.Nil(t, stored.AcceptedAt, "failed acceptance must not consume the invitation")

	f.memberships.createErr = nil
	membership, err := f.svc.Accept(context.Background(), inv.Token, principal)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, membership.Role)
}

func TestTokenService_RotateShareToken(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	ref := f.addProject(owner.ID)
	principal := &models.Principal{ID: owner.ID, Email: owner.Email}

	first, err := f.svc.RotateShareToken(context.Background(), principal, ref)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	access, err := f.svc.ResolveShareToken(context.Background(), ref.Kind, first)
	require.NoError(t, err)
	assert.Equal(t, ref, access.Ref)

	second, err := f.svc.RotateShareToken(context.Background(), principal, ref)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Rotation permanently invalidates the previous value.
	_, err = f.svc.ResolveShareToken(context.Background(), ref.Kind, first)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.ResolveShareToken(context.Background(), ref.Kind, second)
	require.NoError(t, err)
}

func TestTokenService_RotateRequiresManageMembers(t *testing.T) {
	f := newTokenFixture(t)
	owner := f.addUser(t, "owner@example.com", "owner password")
	stranger := f.addUser(t, "stranger@example.com", "stranger password")
	ref := f.addProject(owner.ID)

	_, err := f.svc.RotateShareToken(context.Background(), &models.Principal{ID: stranger.ID, Email: stranger.Email}, ref)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestTokenService_ResolveShareTokenEmpty(t *testing.T) {
	f := newTokenFixture(t)

	_, err := f.svc.ResolveShareToken(context.Background(), models.ResourceKindProject, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/models"
)

// mockResourceRepository is an in-memory ResourceRepository for testing.
type mockResourceRepository struct {
	mu        sync.Mutex
	resources map[models.ResourceRef]*models.ResourceAccess
}

func newMockResourceRepository() *mockResourceRepository {
	return &mockResourceRepository{resources: make(map[models.ResourceRef]*models.ResourceAccess)}
}

func (m *mockResourceRepository) add(access *models.ResourceAccess) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[access.Ref] = access
}

func (m *mockResourceRepository) FetchAccess(ctx context.Context, ref models.ResourceRef) (*models.ResourceAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	access, ok := m.resources[ref]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *access
	return &copied, nil
}

func (m *mockResourceRepository) FindByShareToken(ctx context.Context, kind, token string) (*models.ResourceAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, access := range m.resources {
		if access.Ref.Kind == kind && access.ShareToken != nil && *access.ShareToken == token {
			copied := *access
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockResourceRepository) SetShareToken(ctx context.Context, ref models.ResourceRef, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	access, ok := m.resources[ref]
	if !ok {
		return apperrors.ErrNotFound
	}
	access.ShareToken = &token
	return nil
}

func (m *mockResourceRepository) UpdateSharing(ctx context.Context, ref models.ResourceRef, isPublic, workspaceShared bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	access, ok := m.resources[ref]
	if !ok {
		return apperrors.ErrNotFound
	}
	access.IsPublic = isPublic
	access.WorkspaceShared = workspaceShared
	return nil
}

type membershipKey struct {
	ref    models.ResourceRef
	userID uuid.UUID
}

// mockMembershipRepository is an in-memory MembershipRepository for testing.
type mockMembershipRepository struct {
	mu        sync.Mutex
	rows      map[membershipKey]*models.Membership
	createErr error // returned by CreateIfAbsent when set
}

func newMockMembershipRepository() *mockMembershipRepository {
	return &mockMembershipRepository{rows: make(map[membershipKey]*models.Membership)}
}

func (m *mockMembershipRepository) add(mem *models.Membership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[membershipKey{mem.Ref(), mem.UserID}] = mem
}

func (m *mockMembershipRepository) Get(ctx context.Context, ref models.ResourceRef, userID uuid.UUID) (*models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[membershipKey{ref, userID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *mockMembershipRepository) ListByResource(ctx context.Context, ref models.ResourceRef) ([]*models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Membership
	for key, row := range m.rows {
		if key.ref == ref {
			copied := *row
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockMembershipRepository) Upsert(ctx context.Context, mem *models.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *mem
	m.rows[membershipKey{mem.Ref(), mem.UserID}] = &copied
	return nil
}

func (m *mockMembershipRepository) CreateIfAbsent(ctx context.Context, mem *models.Membership) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return false, m.createErr
	}
	key := membershipKey{mem.Ref(), mem.UserID}
	if _, ok := m.rows[key]; ok {
		return false, nil
	}
	copied := *mem
	m.rows[key] = &copied
	return true, nil
}

func (m *mockMembershipRepository) Remove(ctx context.Context, ref models.ResourceRef, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, membershipKey{ref, userID})
	return nil
}

// mockUserRepository is an in-memory UserRepository for testing.
type mockUserRepository struct {
	mu    sync.Mutex
	users []*models.User
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperrors.ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users = append(m.users, user)
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// mockSessionRepository is an in-memory SessionRepository for testing. Emails
// are resolved through the user repository the way the real store joins.
type mockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	users    *mockUserRepository
}

func newMockSessionRepository(users *mockUserRepository) *mockSessionRepository {
	return &mockSessionRepository{
		sessions: make(map[string]*models.Session),
		users:    users,
	}
}

func (m *mockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	copied := *session
	m.sessions[session.TokenHash] = &copied
	return nil
}

func (m *mockSessionRepository) GetWithEmail(ctx context.Context, tokenHash string) (*models.Session, string, error) {
	m.mu.Lock()
	session, ok := m.sessions[tokenHash]
	m.mu.Unlock()
	if !ok {
		return nil, "", apperrors.ErrNotFound
	}
	user, err := m.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, "", err
	}
	copied := *session
	return &copied, user.Email, nil
}

func (m *mockSessionRepository) Delete(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

// mockInvitationRepository is an in-memory InvitationRepository for testing.
type mockInvitationRepository struct {
	mu   sync.Mutex
	invs map[string]*models.Invitation
}

func newMockInvitationRepository() *mockInvitationRepository {
	return &mockInvitationRepository{invs: make(map[string]*models.Invitation)}
}

func (m *mockInvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.TargetEmail = strings.ToLower(inv.TargetEmail)
	copied := *inv
	m.invs[inv.Token] = &copied
	return nil
}

func (m *mockInvitationRepository) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invs[token]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (m *mockInvitationRepository) MarkAccepted(ctx context.Context, token string, acceptedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invs[token]
	if !ok || inv.AcceptedAt != nil {
		return false, nil
	}
	inv.AcceptedAt = &acceptedAt
	return true, nil
}

func (m *mockInvitationRepository) ListByResource(ctx context.Context, ref models.ResourceRef) ([]*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Invitation
	for _, inv := range m.invs {
		if inv.Ref() == ref {
			copied := *inv
			result = append(result, &copied)
		}
	}
	return result, nil
}

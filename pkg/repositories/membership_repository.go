package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/database"
	"github.com/taskora-inc/taskora-engine/pkg/models"
)

// MembershipRepository defines the interface for membership data access.
// Role and permission stay independent columns; permission only carries
// meaning when role is member.
type MembershipRepository interface {
	Get(ctx context.Context, ref models.ResourceRef, userID uuid.UUID) (*models.Membership, error)
	ListByResource(ctx context.Context, ref models.ResourceRef) ([]*models.Membership, error)
	// Upsert adds a member or updates the role of an existing one.
	Upsert(ctx context.Context, m *models.Membership) error
	// CreateIfAbsent inserts a membership only when none exists for the
	// (resource, user) pair, reporting whether a row was created. Used by
	// invitation acceptance to stay idempotent.
	CreateIfAbsent(ctx context.Context, m *models.Membership) (bool, error)
	Remove(ctx context.Context, ref models.ResourceRef, userID uuid.UUID) error
}

// membershipRepository implements MembershipRepository using PostgreSQL.
type membershipRepository struct {
	db database.Querier
}

// NewMembershipRepository creates a new membership repository over the given handle.
func NewMembershipRepository(db database.Querier) MembershipRepository {
	return &membershipRepository{db: db}
}

// Get retrieves the membership row for a (resource, user) pair.
func (r *membershipRepository) Get(ctx context.Context, ref models.ResourceRef, userID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT resource_kind, resource_id, user_id, role, permission, created_at, updated_at
		FROM memberships
		WHERE resource_kind = $1 AND resource_id = $2 AND user_id = $3`

	var m models.Membership
	err := r.db.QueryRow(ctx, query, ref.Kind, ref.ID, userID).Scan(
		&m.ResourceKind,
		&m.ResourceID,
		&m.UserID,
		&m.Role,
		&m.Permission,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}

// ListByResource retrieves all membership rows for a resource.
func (r *membershipRepository) ListByResource(ctx context.Context, ref models.ResourceRef) ([]*models.Membership, error) {
	query := `
		SELECT resource_kind, resource_id, user_id, role, permission, created_at, updated_at
		FROM memberships
		WHERE resource_kind = $1 AND resource_id = $2
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, ref.Kind, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(
			&m.ResourceKind,
			&m.ResourceID,
			&m.UserID,
			&m.Role,
			&m.Permission,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// Upsert adds a member or updates the role of an existing one.
func (r *membershipRepository) Upsert(ctx context.Context, m *models.Membership) error {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO memberships (resource_kind, resource_id, user_id, role, permission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (resource_kind, resource_id, user_id) DO UPDATE
		SET role = EXCLUDED.role,
		    permission = EXCLUDED.permission,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		m.ResourceKind,
		m.ResourceID,
		m.UserID,
		m.Role,
		m.Permission,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}

	return nil
}

// CreateIfAbsent inserts a membership unless one already exists.
func (r *membershipRepository) CreateIfAbsent(ctx context.Context, m *models.Membership) (bool, error) {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO memberships (resource_kind, resource_id, user_id, role, permission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (resource_kind, resource_id, user_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		m.ResourceKind,
		m.ResourceID,
		m.UserID,
		m.Role,
		m.Permission,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create membership: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Remove deletes a membership row.
func (r *membershipRepository) Remove(ctx context.Context, ref models.ResourceRef, userID uuid.UUID) error {
	query := `DELETE FROM memberships WHERE resource_kind = $1 AND resource_id = $2 AND user_id = $3`

	tag, err := r.db.Exec(ctx, query, ref.Kind, ref.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure membershipRepository implements MembershipRepository at compile time.
var _ MembershipRepository = (*membershipRepository)(nil)

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

// InvitationRepository defines the interface for invitation data access.
type InvitationRepository interface {
	Create(ctx context.Context, inv *models.Invitation) error
	GetByToken(ctx context.Context, token string) (*models.Invitation, error)
	// MarkAccepted transitions accepted_at from null to the given time,
	// reporting whether this call won the transition. This conditional
	// update is the single serialization point for single-use enforcement.
	MarkAccepted(ctx context.Context, token string, acceptedAt time.Time) (bool, error)
	ListByResource(ctx context.Context, ref models.ResourceRef) ([]*models.Invitation, error)
}

// invitationRepository implements InvitationRepository using PostgreSQL.
type invitationRepository struct {
	db database.Querier
}

// NewInvitationRepository creates a new invitation repository over the given handle.
func NewInvitationRepository(db database.Querier) InvitationRepository {
	return &invitationRepository{db: db}
}

// Create inserts a new invitation.
func (r *invitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()

	query := `
		INSERT INTO invitations (id, token, resource_kind, resource_id, target_email, permission, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, LOWER($5), $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		inv.ID,
		inv.Token,
		inv.ResourceKind,
		inv.ResourceID,
		inv.TargetEmail,
		inv.Permission,
		inv.InvitedBy,
		inv.ExpiresAt,
		inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

// GetByToken retrieves an invitation by its token value.
func (r *invitationRepository) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := `
		SELECT id, token, resource_kind, resource_id, target_email, permission, invited_by, expires_at, accepted_at, created_at
		FROM invitations
		WHERE token = $1`

	var inv models.Invitation
	err := r.db.QueryRow(ctx, query, token).Scan(
		&inv.ID,
		&inv.Token,
		&inv.ResourceKind,
		&inv.ResourceID,
		&inv.TargetEmail,
		&inv.Permission,
		&inv.InvitedBy,
		&inv.ExpiresAt,
		&inv.AcceptedAt,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return &inv, nil
}

// MarkAccepted performs the accepted_at null-to-timestamp transition.
// Concurrent calls for the same token see exactly one true result.
func (r *invitationRepository) MarkAccepted(ctx context.Context, token string, acceptedAt time.Time) (bool, error) {
	query := `
		UPDATE invitations
		SET accepted_at = $2
		WHERE token = $1 AND accepted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, token, acceptedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListByResource retrieves all invitations for a resource, newest first.
func (r *invitationRepository) ListByResource(ctx context.Context, ref models.ResourceRef) ([]*models.Invitation, error) {
	query := `
		SELECT id, token, resource_kind, resource_id, target_email, permission, invited_by, expires_at, accepted_at, created_at
		FROM invitations
		WHERE resource_kind = $1 AND resource_id = $2
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ref.Kind, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(
			&inv.ID,
			&inv.Token,
			&inv.ResourceKind,
			&inv.ResourceID,
			&inv.TargetEmail,
			&inv.Permission,
			&inv.InvitedBy,
			&inv.ExpiresAt,
			&inv.AcceptedAt,
			&inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}

	return invitations, nil
}

// Ensure invitationRepository implements InvitationRepository at compile time.
var _ InvitationRepository = (*invitationRepository)(nil)

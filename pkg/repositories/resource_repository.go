package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/database"
	"github.com/taskora-inc/taskora-engine/pkg/models"
)

// ResourceRepository loads the access tuple of a resource polymorphically
// over projects and dashboards. RoleResolver and TokenService depend on this
// narrow view instead of the full records.
type ResourceRepository interface {
	FetchAccess(ctx context.Context, ref models.ResourceRef) (*models.ResourceAccess, error)
	FindByShareToken(ctx context.Context, kind, token string) (*models.ResourceAccess, error)
	// SetShareToken atomically replaces the stored share token. There is no
	// window in which both the old and the new value are valid.
	SetShareToken(ctx context.Context, ref models.ResourceRef, token string) error
	// UpdateSharing sets the is_public and workspace_shared flags.
	UpdateSharing(ctx context.Context, ref models.ResourceRef, isPublic, workspaceShared bool) error
}

// resourceRepository implements ResourceRepository using PostgreSQL.
type resourceRepository struct {
	db database.Querier
}

// NewResourceRepository creates a new resource repository over the given handle.
func NewResourceRepository(db database.Querier) ResourceRepository {
	return &resourceRepository{db: db}
}

// tableFor maps a resource kind to its table. Kinds are validated at the
// boundary, so an unknown kind here is a programming error.
func tableFor(kind string) (string, error) {
	switch kind {
	case models.ResourceKindProject:
		return "projects", nil
	case models.ResourceKindDashboard:
		return "dashboards", nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
}

// FetchAccess loads the access tuple for a resource.
func (r *resourceRepository) FetchAccess(ctx context.Context, ref models.ResourceRef) (*models.ResourceAccess, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT owner_id, is_public, workspace_shared, share_token
		FROM %s
		WHERE id = $1`, table)

	access := models.ResourceAccess{Ref: ref}
	err = r.db.QueryRow(ctx, query, ref.ID).Scan(
		&access.OwnerID,
		&access.IsPublic,
		&access.WorkspaceShared,
		&access.ShareToken,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch resource access: %w", err)
	}

	return &access, nil
}

// FindByShareToken resolves a share token to the resource it belongs to.
func (r *resourceRepository) FindByShareToken(ctx context.Context, kind, token string) (*models.ResourceAccess, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, is_public, workspace_shared, share_token
		FROM %s
		WHERE share_token = $1`, table)

	access := models.ResourceAccess{Ref: models.ResourceRef{Kind: kind}}
	err = r.db.QueryRow(ctx, query, token).Scan(
		&access.Ref.ID,
		&access.OwnerID,
		&access.IsPublic,
		&access.WorkspaceShared,
		&access.ShareToken,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find resource by share token: %w", err)
	}

	return &access, nil
}

// SetShareToken replaces the stored share token in a single statement.
func (r *resourceRepository) SetShareToken(ctx context.Context, ref models.ResourceRef, token string) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET share_token = $2, updated_at = NOW() WHERE id = $1`, table)

	tag, err := r.db.Exec(ctx, query, ref.ID, token)
	if err != nil {
		return fmt.Errorf("failed to set share token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// UpdateSharing sets the sharing flags of a resource.
func (r *resourceRepository) UpdateSharing(ctx context.Context, ref models.ResourceRef, isPublic, workspaceShared bool) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET is_public = $2, workspace_shared = $3, updated_at = NOW()
		WHERE id = $1`, table)

	tag, err := r.db.Exec(ctx, query, ref.ID, isPublic, workspaceShared)
	if err != nil {
		return fmt.Errorf("failed to update sharing flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure resourceRepository implements ResourceRepository at compile time.
var _ ResourceRepository = (*resourceRepository)(nil)

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

// DashboardRepository defines the interface for dashboard data access.
type DashboardRepository interface {
	Create(ctx context.Context, dashboard *models.Dashboard) error
	Get(ctx context.Context, id uuid.UUID) (*models.Dashboard, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Dashboard, error)
	Update(ctx context.Context, dashboard *models.Dashboard) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// dashboardRepository implements DashboardRepository using PostgreSQL.
type dashboardRepository struct {
	db database.Querier
}

// NewDashboardRepository creates a new dashboard repository over the given handle.
func NewDashboardRepository(db database.Querier) DashboardRepository {
	return &dashboardRepository{db: db}
}

const dashboardColumns = `id, name, owner_id, project_id, is_public, workspace_shared, share_token, settings, created_at, updated_at`

// Create inserts a new dashboard.
func (r *dashboardRepository) Create(ctx context.Context, dashboard *models.Dashboard) error {
	if dashboard.ID == uuid.Nil {
		dashboard.ID = uuid.New()
	}
	now := time.Now()
	dashboard.CreatedAt = now
	dashboard.UpdatedAt = now
	if dashboard.Settings.Version == 0 {
		dashboard.Settings.Version = models.SettingsVersion
	}

	query := `
		INSERT INTO dashboards (` + dashboardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		dashboard.ID,
		dashboard.Name,
		dashboard.OwnerID,
		dashboard.ProjectID,
		dashboard.IsPublic,
		dashboard.WorkspaceShared,
		dashboard.ShareToken,
		dashboard.Settings,
		dashboard.CreatedAt,
		dashboard.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	return nil
}

// Get retrieves a dashboard by ID.
func (r *dashboardRepository) Get(ctx context.Context, id uuid.UUID) (*models.Dashboard, error) {
	query := `SELECT ` + dashboardColumns + ` FROM dashboards WHERE id = $1`

	var dashboard models.Dashboard
	err := r.db.QueryRow(ctx, query, id).Scan(
		&dashboard.ID,
		&dashboard.Name,
		&dashboard.OwnerID,
		&dashboard.ProjectID,
		&dashboard.IsPublic,
		&dashboard.WorkspaceShared,
		&dashboard.ShareToken,
		&dashboard.Settings,
		&dashboard.CreatedAt,
		&dashboard.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}

	return &dashboard, nil
}

// ListForUser returns dashboards the user owns or holds a membership on.
func (r *dashboardRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Dashboard, error) {
	query := `
		SELECT ` + dashboardColumns + `
		FROM dashboards d
		WHERE d.owner_id = $1
		   OR EXISTS (
			SELECT 1 FROM memberships m
			WHERE m.resource_kind = 'dashboard' AND m.resource_id = d.id AND m.user_id = $1)
		ORDER BY d.created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	defer rows.Close()

	var dashboards []*models.Dashboard
	for rows.Next() {
		var dashboard models.Dashboard
		if err := rows.Scan(
			&dashboard.ID,
			&dashboard.Name,
			&dashboard.OwnerID,
			&dashboard.ProjectID,
			&dashboard.IsPublic,
			&dashboard.WorkspaceShared,
			&dashboard.ShareToken,
			&dashboard.Settings,
			&dashboard.CreatedAt,
			&dashboard.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}
		dashboards = append(dashboards, &dashboard)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dashboards: %w", err)
	}

	return dashboards, nil
}

// Update updates a dashboard's name, sharing flags and settings.
func (r *dashboardRepository) Update(ctx context.Context, dashboard *models.Dashboard) error {
	dashboard.UpdatedAt = time.Now()

	query := `
		UPDATE dashboards
		SET name = $2, is_public = $3, workspace_shared = $4, settings = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		dashboard.ID,
		dashboard.Name,
		dashboard.IsPublic,
		dashboard.WorkspaceShared,
		dashboard.Settings,
		dashboard.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update dashboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a dashboard and its membership and invitation rows. Those
// tables key resources polymorphically, so no foreign key cascades for them.
func (r *dashboardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM dashboards WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete dashboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM memberships WHERE resource_kind = 'dashboard' AND resource_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete dashboard memberships: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM invitations WHERE resource_kind = 'dashboard' AND resource_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete dashboard invitations: %w", err)
	}

	return nil
}

// Ensure dashboardRepository implements DashboardRepository at compile time.
var _ DashboardRepository = (*dashboardRepository)(nil)

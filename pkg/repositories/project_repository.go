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

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// ListForUser returns projects the user owns or is a member of.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct {
	db database.Querier
}

// NewProjectRepository creates a new project repository over the given handle.
func NewProjectRepository(db database.Querier) ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `id, name, owner_id, is_public, workspace_shared, share_token, settings, created_at, updated_at`

// Create inserts a new project.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Settings.Version == 0 {
		project.Settings.Version = models.SettingsVersion
	}

	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		project.ID,
		project.Name,
		project.OwnerID,
		project.IsPublic,
		project.WorkspaceShared,
		project.ShareToken,
		project.Settings,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID.
func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	var project models.Project
	err := r.db.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.OwnerID,
		&project.IsPublic,
		&project.WorkspaceShared,
		&project.ShareToken,
		&project.Settings,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// ListForUser returns projects the user owns or holds a membership on.
func (r *projectRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		WHERE p.owner_id = $1
		   OR EXISTS (
			SELECT 1 FROM memberships m
			WHERE m.resource_kind = 'project' AND m.resource_id = p.id AND m.user_id = $1)
		ORDER BY p.created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(
			&project.ID,
			&project.Name,
			&project.OwnerID,
			&project.IsPublic,
			&project.WorkspaceShared,
			&project.ShareToken,
			&project.Settings,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

// Update updates a project's name, sharing flags and settings. OwnerID is
// immutable and deliberately absent from the statement.
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET name = $2, is_public = $3, workspace_shared = $4, settings = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		project.ID,
		project.Name,
		project.IsPublic,
		project.WorkspaceShared,
		project.Settings,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a project and its membership and invitation rows. Those
// tables key resources polymorphically, so no foreign key cascades for them.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM projects WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM memberships WHERE resource_kind = 'project' AND resource_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete project memberships: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM invitations WHERE resource_kind = 'project' AND resource_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete project invitations: %w", err)
	}

	return nil
}

// Ensure projectRepository implements ProjectRepository at compile time.
var _ ProjectRepository = (*projectRepository)(nil)

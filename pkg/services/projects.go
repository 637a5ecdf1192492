package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/repositories"
)

// ProjectService defines the interface for project CRUD. Authorization
// happens in the handlers through AccessGateway before these are called.
type ProjectService interface {
	Create(ctx context.Context, owner *models.Principal, name string) (*models.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// projectService implements ProjectService.
type projectService struct {
	projectRepo repositories.ProjectRepository
	logger      *zap.Logger
}

// NewProjectService creates a new project service with dependencies.
func NewProjectService(projectRepo repositories.ProjectRepository, logger *zap.Logger) ProjectService {
	return &projectService{projectRepo: projectRepo, logger: logger}
}

// Create inserts a project owned by the principal. The owner needs no
// membership row; ownership is derived from owner_id.
func (s *projectService) Create(ctx context.Context, owner *models.Principal, name string) (*models.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name must not be empty")
	}

	project := &models.Project{
		Name:    name,
		OwnerID: owner.ID,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("owner_id", owner.ID.String()))
	return project, nil
}

func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.projectRepo.Get(ctx, id)
}

func (s *projectService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	return s.projectRepo.ListForUser(ctx, userID)
}

func (s *projectService) Update(ctx context.Context, project *models.Project) error {
	return s.projectRepo.Update(ctx, project)
}

func (s *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.projectRepo.Delete(ctx, id)
}

// Ensure projectService implements ProjectService at compile time.
var _ ProjectService = (*projectService)(nil)

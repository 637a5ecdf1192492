package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/repositories"
)

// DashboardService defines the interface for dashboard CRUD.
type DashboardService interface {
	Create(ctx context.Context, owner *models.Principal, name string, projectID *uuid.UUID) (*models.Dashboard, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Dashboard, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Dashboard, error)
	Update(ctx context.Context, dashboard *models.Dashboard) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// dashboardService implements DashboardService.
type dashboardService struct {
	dashboardRepo repositories.DashboardRepository
	logger        *zap.Logger
}

// NewDashboardService creates a new dashboard service with dependencies.
func NewDashboardService(dashboardRepo repositories.DashboardRepository, logger *zap.Logger) DashboardService {
	return &dashboardService{dashboardRepo: dashboardRepo, logger: logger}
}

// Create inserts a dashboard owned by the principal.
func (s *dashboardService) Create(ctx context.Context, owner *models.Principal, name string, projectID *uuid.UUID) (*models.Dashboard, error) {
	if name == "" {
		return nil, fmt.Errorf("dashboard name must not be empty")
	}

	dashboard := &models.Dashboard{
		Name:      name,
		OwnerID:   owner.ID,
		ProjectID: projectID,
	}
	if err := s.dashboardRepo.Create(ctx, dashboard); err != nil {
		return nil, err
	}

	s.logger.Info("Dashboard created",
		zap.String("dashboard_id", dashboard.ID.String()),
		zap.String("owner_id", owner.ID.String()))
	return dashboard, nil
}

func (s *dashboardService) Get(ctx context.Context, id uuid.UUID) (*models.Dashboard, error) {
	return s.dashboardRepo.Get(ctx, id)
}

func (s *dashboardService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Dashboard, error) {
	return s.dashboardRepo.ListForUser(ctx, userID)
}

func (s *dashboardService) Update(ctx context.Context, dashboard *models.Dashboard) error {
	return s.dashboardRepo.Update(ctx, dashboard)
}

func (s *dashboardService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.dashboardRepo.Delete(ctx, id)
}

// Ensure dashboardService implements DashboardService at compile time.
var _ DashboardService = (*dashboardService)(nil)

package models

import (
	"time"

	"github.com/google/uuid"
)

// Dashboard represents a dashboard. It may optionally belong to a project,
// but its access is resolved on the dashboard itself, not inherited.
type Dashboard struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	OwnerID         uuid.UUID         `json:"owner_id"`
	ProjectID       *uuid.UUID        `json:"project_id,omitempty"`
	IsPublic        bool              `json:"is_public"`
	WorkspaceShared bool              `json:"workspace_shared"`
	ShareToken      *string           `json:"-"`
	Settings        DashboardSettings `json:"settings"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Ref returns the dashboard's resource reference.
func (d *Dashboard) Ref() ResourceRef { return DashboardRef(d.ID) }

// Access returns the access tuple of the dashboard.
func (d *Dashboard) Access() *ResourceAccess {
	return &ResourceAccess{
		Ref:             d.Ref(),
		OwnerID:         d.OwnerID,
		IsPublic:        d.IsPublic,
		WorkspaceShared: d.WorkspaceShared,
		ShareToken:      d.ShareToken,
	}
}

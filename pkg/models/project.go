package models

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a project in the system. OwnerID is immutable after
// creation; ownership is never transferred through membership rows.
type Project struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	IsPublic        bool            `json:"is_public"`
	WorkspaceShared bool            `json:"workspace_shared"`
	ShareToken      *string         `json:"-"`
	Settings        ProjectSettings `json:"settings"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Ref returns the project's resource reference.
func (p *Project) Ref() ResourceRef { return ProjectRef(p.ID) }

// Access returns the access tuple of the project.
func (p *Project) Access() *ResourceAccess {
	return &ResourceAccess{
		Ref:             p.Ref(),
		OwnerID:         p.OwnerID,
		IsPublic:        p.IsPublic,
		WorkspaceShared: p.WorkspaceShared,
		ShareToken:      p.ShareToken,
	}
}

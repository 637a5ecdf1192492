package models

import "github.com/google/uuid"

// Resource kinds the access-control layer is polymorphic over.
const (
	ResourceKindProject   = "project"
	ResourceKindDashboard = "dashboard"
)

// IsValidResourceKind checks if the given kind is known.
func IsValidResourceKind(kind string) bool {
	return kind == ResourceKindProject || kind == ResourceKindDashboard
}

// ResourceRef identifies a resource independent of its concrete type.
type ResourceRef struct {
	Kind string    `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// ProjectRef builds a reference to a project.
func ProjectRef(id uuid.UUID) ResourceRef {
	return ResourceRef{Kind: ResourceKindProject, ID: id}
}

// DashboardRef builds a reference to a dashboard.
func DashboardRef(id uuid.UUID) ResourceRef {
	return ResourceRef{Kind: ResourceKindDashboard, ID: id}
}

// ResourceAccess is the tuple of access-relevant fields of a resource, loaded
// without the rest of the record. Everything RoleResolver needs is here.
type ResourceAccess struct {
	Ref             ResourceRef
	OwnerID         uuid.UUID
	IsPublic        bool
	WorkspaceShared bool
	// ShareToken is the current rotating share token, nil when none has been
	// generated yet. Rotation permanently invalidates the previous value.
	ShareToken *string
}

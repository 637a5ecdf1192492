package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership is a user's explicit membership on a resource. Ownership is
// never stored here; the resource's owner_id is the single source of truth
// for the owner grant. Permission is set only for invitation-originated
// members and stays independent from Role.
type Membership struct {
	ResourceKind string    `json:"resource_kind"`
	ResourceID   uuid.UUID `json:"resource_id"`
	UserID       uuid.UUID `json:"user_id"`
	Role         string    `json:"role"`
	Permission   *string   `json:"permission,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ref returns the resource reference this membership belongs to.
func (m *Membership) Ref() ResourceRef {
	return ResourceRef{Kind: m.ResourceKind, ID: m.ResourceID}
}

// Grant converts a membership row into the effective grant it carries.
func (m *Membership) Grant() *Grant {
	g := &Grant{Role: m.Role}
	if m.Permission != nil {
		g.Permission = *m.Permission
	}
	return g
}

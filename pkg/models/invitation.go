package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invitation is an email-bound, single-use grant of membership on a resource.
// Expiry is checked at use time, never swept. A non-nil AcceptedAt makes the
// invitation inert even if the token is presented again.
type Invitation struct {
	ID           uuid.UUID  `json:"id"`
	Token        string     `json:"-"`
	ResourceKind string     `json:"resource_kind"`
	ResourceID   uuid.UUID  `json:"resource_id"`
	TargetEmail  string     `json:"target_email"`
	Permission   string     `json:"permission"`
	InvitedBy    uuid.UUID  `json:"invited_by"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Ref returns the resource reference this invitation grants access to.
func (i *Invitation) Ref() ResourceRef {
	return ResourceRef{Kind: i.ResourceKind, ID: i.ResourceID}
}

// Expired reports whether the invitation is past its time boundary.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// MatchesEmail reports whether the given email satisfies the invitation's
// email binding. The comparison is case-insensitive.
func (i *Invitation) MatchesEmail(email string) bool {
	return strings.EqualFold(i.TargetEmail, email)
}

// Package models contains domain types for taskora-engine.
package models

// Role constants for effective grants. Only RoleAdmin and RoleMember may be
// stored on a membership row; RoleOwner is derived from resource ownership
// and RoleGuest from sharing flags.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleGuest  = "guest"
)

// Permission constants. A permission only narrows content actions for
// invitation-originated members; it never promotes a role.
const (
	PermissionView     = "view"
	PermissionComment  = "comment"
	PermissionEdit     = "edit"
	PermissionFullEdit = "full_edit"
)

// MembershipRoles contains the roles storable on a membership row.
var MembershipRoles = []string{RoleAdmin, RoleMember}

// IsValidMembershipRole checks if the given role may be stored on a membership.
func IsValidMembershipRole(role string) bool {
	for _, r := range MembershipRoles {
		if r == role {
			return true
		}
	}
	return false
}

var permissionRank = map[string]int{
	PermissionView:     1,
	PermissionComment:  2,
	PermissionEdit:     3,
	PermissionFullEdit: 4,
}

// IsValidPermission checks if the given permission is a known value.
func IsValidPermission(permission string) bool {
	_, ok := permissionRank[permission]
	return ok
}

var roleRank = map[string]int{
	RoleGuest:  1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Grant is the resolved effective access a principal holds on a resource.
// It is produced by RoleResolver and consumed through the predicate methods
// below; none of the predicates perform any queries.
type Grant struct {
	Role string `json:"role"`
	// Permission narrows content actions for invitation-originated members.
	// Empty means no narrowing.
	Permission string `json:"permission,omitempty"`
}

func (g *Grant) roleAtLeast(role string) bool {
	return g != nil && roleRank[g.Role] >= roleRank[role]
}

func (g *Grant) permissionAtLeast(permission string) bool {
	if g.Permission == "" {
		return true
	}
	return permissionRank[g.Permission] >= permissionRank[permission]
}

// CanView reports whether the grant allows reading the resource.
// Any resolved grant, including guest-view, can view.
func (g *Grant) CanView() bool {
	return g.roleAtLeast(RoleGuest)
}

// CanEditResource reports whether the grant allows changing the resource
// itself (rename, delete, sharing settings).
func (g *Grant) CanEditResource() bool {
	return g.roleAtLeast(RoleAdmin)
}

// CanManageMembers reports whether the grant allows adding, removing and
// inviting members.
func (g *Grant) CanManageMembers() bool {
	return g.roleAtLeast(RoleAdmin)
}

// CanComment reports whether the grant allows commenting on resource content.
func (g *Grant) CanComment() bool {
	return g.roleAtLeast(RoleMember) && g.permissionAtLeast(PermissionComment)
}

// CanEditContent reports whether the grant allows editing resource content
// (tasks, widgets).
func (g *Grant) CanEditContent() bool {
	return g.roleAtLeast(RoleMember) && g.permissionAtLeast(PermissionEdit)
}

// CanSeeMembers reports whether the grant allows listing the membership of
// the resource. Guest-view access deliberately excludes this.
func (g *Grant) CanSeeMembers() bool {
	return g.roleAtLeast(RoleMember)
}

// OwnerGrant is the grant implied by resource ownership.
func OwnerGrant() *Grant { return &Grant{Role: RoleOwner} }

// GuestGrant is the read-only grant implied by sharing flags and share tokens.
func GuestGrant() *Grant { return &Grant{Role: RoleGuest} }

// Package rbac holds the static role hierarchy and permission table.
package rbac

import "strings"

// Role is an organization-level role.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
	RoleViewer  Role = "VIEWER"
)

// Hierarchy lists roles from most to least privileged. Privilege comparison
// uses the position in this list, never the string value.
var Hierarchy = []Role{RoleAdmin, RoleManager, RoleMember, RoleViewer}

// Permission names a resource:action pair.
type Permission string

const (
	PermObjectivesRead   Permission = "objectives:read"
	PermObjectivesCreate Permission = "objectives:create"
	PermObjectivesUpdate Permission = "objectives:update"
	PermObjectivesDelete Permission = "objectives:delete"

	PermRocksRead   Permission = "rocks:read"
	PermRocksCreate Permission = "rocks:create"
	PermRocksUpdate Permission = "rocks:update"
	PermRocksDelete Permission = "rocks:delete"

	PermSprintsRead   Permission = "sprints:read"
	PermSprintsCreate Permission = "sprints:create"
	PermSprintsUpdate Permission = "sprints:update"
	PermSprintsDelete Permission = "sprints:delete"

	PermStoriesRead   Permission = "stories:read"
	PermStoriesCreate Permission = "stories:create"
	PermStoriesUpdate Permission = "stories:update"
	PermStoriesDelete Permission = "stories:delete"

	PermTasksRead   Permission = "tasks:read"
	PermTasksCreate Permission = "tasks:create"
	PermTasksUpdate Permission = "tasks:update"
	PermTasksDelete Permission = "tasks:delete"

	PermTeamsRead   Permission = "teams:read"
	PermTeamsManage Permission = "teams:manage"

	PermMembersRead   Permission = "members:read"
	PermMembersManage Permission = "members:manage"

	PermOrganizationUpdate     Permission = "organization:update"
	PermOrganizationDeactivate Permission = "organization:deactivate"

	PermFlagsManage       Permission = "flags:manage"
	PermAuditRead         Permission = "audit:read"
	PermAlertsManage      Permission = "alerts:manage"
	PermNotificationsRead Permission = "notifications:read"
)

type grant struct {
	allowed []Role
	// ownerOnly roles are in allowed but only for resources they own.
	ownerOnly []Role
}

var (
	everyone  = []Role{RoleAdmin, RoleManager, RoleMember, RoleViewer}
	writers   = []Role{RoleAdmin, RoleManager, RoleMember}
	managers  = []Role{RoleAdmin, RoleManager}
	adminOnly = []Role{RoleAdmin}
	members   = []Role{RoleMember}
)

var permissions = map[Permission]grant{
	PermObjectivesRead:   {allowed: everyone},
	PermObjectivesCreate: {allowed: managers},
	PermObjectivesUpdate: {allowed: managers},
	PermObjectivesDelete: {allowed: adminOnly},

	PermRocksRead:   {allowed: everyone},
	PermRocksCreate: {allowed: writers},
	PermRocksUpdate: {allowed: writers, ownerOnly: members},
	PermRocksDelete: {allowed: managers},

	PermSprintsRead:   {allowed: everyone},
	PermSprintsCreate: {allowed: managers},
	PermSprintsUpdate: {allowed: managers},
	PermSprintsDelete: {allowed: adminOnly},

	PermStoriesRead:   {allowed: everyone},
	PermStoriesCreate: {allowed: writers},
	PermStoriesUpdate: {allowed: writers, ownerOnly: members},
	PermStoriesDelete: {allowed: writers, ownerOnly: members},

	PermTasksRead:   {allowed: everyone},
	PermTasksCreate: {allowed: writers},
	PermTasksUpdate: {allowed: writers, ownerOnly: members},
	PermTasksDelete: {allowed: writers, ownerOnly: members},

	PermTeamsRead:   {allowed: everyone},
	PermTeamsManage: {allowed: managers},

	PermMembersRead:   {allowed: everyone},
	PermMembersManage: {allowed: adminOnly},

	PermOrganizationUpdate:     {allowed: adminOnly},
	PermOrganizationDeactivate: {allowed: adminOnly},

	PermFlagsManage:       {allowed: adminOnly},
	PermAuditRead:         {allowed: managers},
	PermAlertsManage:      {allowed: adminOnly},
	PermNotificationsRead: {allowed: everyone},
}

// HasPermission reports whether role appears in the permission's allowed list.
func HasPermission(role Role, permission Permission) bool {
	g, ok := permissions[permission]
	if !ok {
		return false
	}
	return contains(g.allowed, role)
}

// RequiresOwnership reports whether the role's grant for permission only
// covers resources the actor owns.
func RequiresOwnership(role Role, permission Permission) bool {
	g, ok := permissions[permission]
	if !ok {
		return false
	}
	return contains(g.ownerOnly, role)
}

// AllowedRoles returns a copy of the allowed-role list for permission.
func AllowedRoles(permission Permission) []Role {
	g, ok := permissions[permission]
	if !ok {
		return nil
	}
	return append([]Role(nil), g.allowed...)
}

// Permissions returns every permission in the table.
func Permissions() []Permission {
	out := make([]Permission, 0, len(permissions))
	for p := range permissions {
		out = append(out, p)
	}
	return out
}

// Level returns the position of role in Hierarchy, or -1 if unknown.
func Level(role Role) int {
	for i, r := range Hierarchy {
		if r == role {
			return i
		}
	}
	return -1
}

// IsRoleAtLeast reports whether userRole is at or above requiredRole.
func IsRoleAtLeast(userRole, requiredRole Role) bool {
	u, r := Level(userRole), Level(requiredRole)
	if u < 0 || r < 0 {
		return false
	}
	return u <= r
}

// IsValid reports whether role is one of the fixed roles.
func (r Role) IsValid() bool {
	return Level(r) >= 0
}

// ParseRole normalizes a stored role value, including legacy spellings.
// The second result is false when the value is not recognized.
func ParseRole(value string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "ADMIN", "OWNER":
		return RoleAdmin, true
	case "MANAGER":
		return RoleManager, true
	case "MEMBER":
		return RoleMember, true
	case "VIEWER":
		return RoleViewer, true
	}
	return "", false
}

func contains(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

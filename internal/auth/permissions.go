package auth

import "slices"

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermGridRead        Permission = "grid:read"
	PermGridControl     Permission = "grid:control" // filter and sort
	PermDeviceReconnect Permission = "device:reconnect"
	PermHistoryRead     Permission = "history:read"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermGridRead,
		PermHistoryRead,
	},
	RoleOperator: {
		PermGridRead,
		PermGridControl,
		PermDeviceReconnect,
		PermHistoryRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}

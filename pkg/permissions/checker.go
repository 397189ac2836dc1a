// Package permissions provides utilities for checking a user's permission
// set against required permissions with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "receiving.*")
//   - "resource.action" - Specific action (e.g., "receiving.complete")
package permissions

import (
	"strings"
)

// Permissions used across the back-office.
const (
	PermCatalogRead     = "catalog.read"
	PermCatalogWrite    = "catalog.write"
	PermReceivingRead   = "receiving.read"
	PermReceivingScan   = "receiving.scan"
	PermReceivingWrite  = "receiving.write"
	PermReceivingClose  = "receiving.complete"
	PermInventoryRead   = "inventory.read"
	PermInventoryWrite  = "inventory.write"
)

// RolePermissions maps a user role to its granted permission set.
var RolePermissions = map[string][]string{
	"admin":      {"*"},
	"manager":    {"catalog.*", "receiving.*", "inventory.*"},
	"pharmacist": {PermCatalogRead, PermReceivingRead, PermReceivingScan, PermReceivingWrite, PermInventoryRead},
}

// ForRole returns the permission set granted to a role. Unknown roles get
// nothing.
func ForRole(role string) []string {
	return RolePermissions[role]
}

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "receiving.*" matches "receiving.read", "receiving.write", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "receiving.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the user has all of the required permissions.
func HasAllPermissions(userPerms []string, required []string) bool {
	for _, req := range required {
		if !HasPermission(userPerms, req) {
			return false
		}
	}
	return true
}

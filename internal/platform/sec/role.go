// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "strings"

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Unrestricted storefront administration
	RoleAdmin UserRole = "admin"

	// Default role for standard registered customers
	RoleUser UserRole = "user"
)

// ParseRole normalizes a backend role name. Unknown or empty names map to [RoleUser].
func ParseRole(name string) UserRole {
	switch UserRole(strings.ToLower(strings.TrimSpace(name))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleAdmin:
		return 40
	case RoleUser:
		return 10
	default:
		return 0
	}
}

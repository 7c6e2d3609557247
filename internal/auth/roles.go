package auth

import (
	"fmt"
	"strings"
)

// Role is the role hint carried in a caller's token. It never grants access
// to a specific record on its own; record access is decided by the caller's
// relationship to the property.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// AllRoles returns every valid role
func AllRoles() []Role {
	return []Role{RoleTenant, RoleLandlord, RoleAgent, RoleAdmin}
}

// NormalizeRole lower-cases and trims a role string. Empty input maps to tenant.
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return string(RoleTenant)
	}
	return role
}

// ValidateRole checks that role names a known role
func ValidateRole(role string) error {
	for _, r := range AllRoles() {
		if string(r) == role {
			return nil
		}
	}
	return fmt.Errorf("invalid role: %s", role)
}

// HasAnyRole reports whether role is one of allowed.
func HasAnyRole(role string, allowed ...Role) bool {
	for _, a := range allowed {
		if role == string(a) {
			return true
		}
	}
	return false
}

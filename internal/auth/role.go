package auth

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the closed set of permission levels a principal can hold.
type Role string

const (
	RoleUser       Role = "User"
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "SuperAdmin"
)

// Roles lists every canonical role.
var Roles = []Role{RoleUser, RoleAdmin, RoleSuperAdmin}

// Valid reports whether r is one of the canonical roles. Aliases are not valid here.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole maps user input onto a canonical role. The lower-case spellings
// used by some frontends (user, admin, super_admin) are accepted as aliases.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	case "superadmin":
		return RoleSuperAdmin, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// HasRole reports exact membership of role in allowed. SuperAdmin is not
// implied by Admin; callers list every role they accept.
func HasRole(role Role, allowed ...Role) bool {
	return slices.Contains(allowed, role)
}

// IsAdmin treats Admin and SuperAdmin as admin-equivalent.
func IsAdmin(role Role) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}

// IsSuperAdmin reports whether role is SuperAdmin.
func IsSuperAdmin(role Role) bool {
	return role == RoleSuperAdmin
}

package common

import "strings"

// Role is the marketplace role carried by every profile. A user holds
// exactly one role at a time.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

// DefaultRole is assigned whenever a profile is missing or carries an
// unrecognised role.
const DefaultRole = RoleBuyer

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleSeller, RoleBuyer}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleBuyer:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// RoleOrDefault returns r when valid, DefaultRole otherwise.
func RoleOrDefault(r Role) Role {
	if r.Valid() {
		return r
	}
	return DefaultRole
}

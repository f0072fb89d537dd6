package profiles

import "strings"

// Role is a user's authorization level. The zero value means the stored
// profile carries no role.
type Role string

const (
	RoleUnset Role = ""
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole normalizes s and reports whether it names a known role. An
// empty string parses to RoleUnset.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUnset:
		return RoleUnset, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return RoleUnset, false
}

// Flip returns the opposite role. An unset role counts as user.
func (r Role) Flip() Role {
	if r == RoleAdmin {
		return RoleUser
	}
	return RoleAdmin
}

func (r Role) String() string {
	if r == RoleUnset {
		return "unset"
	}
	return string(r)
}

package sdk

import (
	"fmt"
	"strings"
)

// Role is the fixed set of account kinds a school client knows about.
type Role string

const (
	RoleParent    Role = "parent"
	RoleStudent   Role = "student"
	RoleTeacher   Role = "teacher"
	RoleSecretary Role = "secretary"
	RolePrincipal Role = "principal"
	RoleAdmin     Role = "admin"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleParent, RoleStudent, RoleTeacher, RoleSecretary, RolePrincipal, RoleAdmin}

// legacyRoleAliases maps names used by older account tables.
var legacyRoleAliases = map[string]Role{
	"director":   RolePrincipal,
	"directeur":  RolePrincipal,
	"eleve":      RoleStudent,
	"enseignant": RoleTeacher,
	"secretaire": RoleSecretary,
}

// ParseRole normalizes a role name. Legacy aliases are accepted.
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, r := range Roles {
		if string(r) == name {
			return r, nil
		}
	}
	if r, ok := legacyRoleAliases[name]; ok {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Namespace returns the session store slot reserved for the role.
func (r Role) Namespace() Slot {
	return Slot(r)
}

// SchoolBound reports whether accounts of this role normally belong to one school.
func (r Role) SchoolBound() bool {
	return r != RoleAdmin
}

func (r Role) String() string { return string(r) }

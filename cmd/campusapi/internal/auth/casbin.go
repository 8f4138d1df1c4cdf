package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/pensezy/edutrack/pkg/sdk"
)

//go:embed model.conf
var casbinModelContent string

// defaultPolicies grants every role the member permissions; principals and
// admins may additionally repair school records.
var defaultPolicies = [][]string{
	{RoleSubject(RoleMember), ObjectUser, UserRead},
	{RoleSubject(RoleMember), ObjectUser, UserWrite},
	{RoleSubject(RoleMember), ObjectSchool, SchoolRead},
	{RoleSubject(string(sdk.RolePrincipal)), ObjectSchool, SchoolUpdatePrincipal},
	{RoleSubject(string(sdk.RoleAdmin)), ObjectSchool, SchoolUpdatePrincipal},
}

// InitEnforcer creates a Casbin enforcer from the embedded RBAC model with
// the default EduTrack policies loaded in memory.
func InitEnforcer() (casbin.IEnforcer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if _, err := enforcer.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("add casbin policies: %w", err)
	}
	for _, role := range sdk.Roles {
		if _, err := enforcer.AddGroupingPolicy(RoleSubject(string(role)), RoleSubject(RoleMember)); err != nil {
			return nil, fmt.Errorf("add role %s: %w", role, err)
		}
	}

	return enforcer, nil
}

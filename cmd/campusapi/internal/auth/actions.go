package auth

// Object types guarded by the enforcer
const (
	ObjectUser   = "user"
	ObjectSchool = "school"
)

// User actions
const (
	// UserRead allows looking up canonical user rows
	UserRead = "user:read"

	// UserWrite allows creating or updating canonical user rows
	UserWrite = "user:write"
)

// School actions
const (
	// SchoolRead allows reading a user's bound school
	SchoolRead = "school:read"

	// SchoolUpdatePrincipal allows setting the principal name on a school
	SchoolUpdatePrincipal = "school:update-principal"
)

// RoleMember is inherited by every signed-in role.
const RoleMember = "member"

// RoleSubject returns the enforcer subject for an EduTrack role.
func RoleSubject(role string) string {
	return "role:" + role
}

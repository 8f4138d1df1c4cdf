package sdk

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Identity is the authenticated principal as the client sees it.
//
// Identities are values. ID and Role never change after construction; the
// With* helpers return modified copies. Role-specific data lives in a Profile
// that is only reachable through the As* accessors, which check the role.
type Identity struct {
	ID         string
	Email      string
	Name       string
	Role       Role
	Phone      string
	SchoolID   string
	SchoolName string
	Active     bool
	Demo       bool

	profile Profile
}

// Profile carries the fields that only make sense for one role.
type Profile interface {
	ProfileRole() Role
	clone() Profile
}

// ParentProfile lists the students a parent account follows.
type ParentProfile struct {
	ChildIDs []string `json:"child_ids,omitempty" mapstructure:"child_ids"`
}

// StudentProfile holds class placement for a student account.
type StudentProfile struct {
	ClassName string `json:"class_name,omitempty" mapstructure:"class_name"`
	ParentID  string `json:"parent_id,omitempty" mapstructure:"parent_id"`
}

// TeacherProfile lists the subjects a teacher covers.
type TeacherProfile struct {
	Subjects []string `json:"subjects,omitempty" mapstructure:"subjects"`
}

// SecretaryProfile has no role-specific fields yet.
type SecretaryProfile struct{}

// PrincipalProfile records the school a principal runs.
type PrincipalProfile struct {
	SchoolName string `json:"school_name,omitempty" mapstructure:"school_name"`
}

// AdminProfile has no role-specific fields yet.
type AdminProfile struct{}

func (ParentProfile) ProfileRole() Role    { return RoleParent }
func (StudentProfile) ProfileRole() Role   { return RoleStudent }
func (TeacherProfile) ProfileRole() Role   { return RoleTeacher }
func (SecretaryProfile) ProfileRole() Role { return RoleSecretary }
func (PrincipalProfile) ProfileRole() Role { return RolePrincipal }
func (AdminProfile) ProfileRole() Role     { return RoleAdmin }

func (p ParentProfile) clone() Profile {
	p.ChildIDs = slices.Clone(p.ChildIDs)
	return p
}
func (p StudentProfile) clone() Profile { return p }
func (p TeacherProfile) clone() Profile {
	p.Subjects = slices.Clone(p.Subjects)
	return p
}
func (p SecretaryProfile) clone() Profile { return p }
func (p PrincipalProfile) clone() Profile { return p }
func (p AdminProfile) clone() Profile     { return p }

// emptyProfile returns the zero profile for a role, nil for unknown roles.
func emptyProfile(r Role) Profile {
	switch r {
	case RoleParent:
		return ParentProfile{}
	case RoleStudent:
		return StudentProfile{}
	case RoleTeacher:
		return TeacherProfile{}
	case RoleSecretary:
		return SecretaryProfile{}
	case RolePrincipal:
		return PrincipalProfile{}
	case RoleAdmin:
		return AdminProfile{}
	default:
		return nil
	}
}

// WithProfile attaches a role-specific profile. The profile must belong to the
// identity's role.
func (i Identity) WithProfile(p Profile) (Identity, error) {
	if p == nil {
		i.profile = nil
		return i, nil
	}
	if p.ProfileRole() != i.Role {
		return i, fmt.Errorf("profile for role %s cannot be attached to %s identity", p.ProfileRole(), i.Role)
	}
	i.profile = p.clone()
	return i, nil
}

// WithSchool returns a copy bound to the given school.
func (i Identity) WithSchool(id, name string) Identity {
	out := i.Clone()
	out.SchoolID = id
	out.SchoolName = name
	if p, ok := out.profile.(PrincipalProfile); ok || (out.Role == RolePrincipal && out.profile == nil) {
		p.SchoolName = name
		out.profile = p
	}
	return out
}

// Clone returns a deep copy.
func (i Identity) Clone() Identity {
	if i.profile != nil {
		i.profile = i.profile.clone()
	}
	return i
}

// Profile returns the attached profile, or the zero profile for the role.
func (i Identity) Profile() Profile {
	if i.profile != nil {
		return i.profile.clone()
	}
	return emptyProfile(i.Role)
}

// AsParent returns the parent profile when the identity is a parent.
func (i Identity) AsParent() (ParentProfile, bool) {
	if i.Role != RoleParent {
		return ParentProfile{}, false
	}
	p, _ := i.Profile().(ParentProfile)
	return p, true
}

// AsStudent returns the student profile when the identity is a student.
func (i Identity) AsStudent() (StudentProfile, bool) {
	if i.Role != RoleStudent {
		return StudentProfile{}, false
	}
	p, _ := i.Profile().(StudentProfile)
	return p, true
}

// AsTeacher returns the teacher profile when the identity is a teacher.
func (i Identity) AsTeacher() (TeacherProfile, bool) {
	if i.Role != RoleTeacher {
		return TeacherProfile{}, false
	}
	p, _ := i.Profile().(TeacherProfile)
	return p, true
}

// AsSecretary returns the secretary profile when the identity is a secretary.
func (i Identity) AsSecretary() (SecretaryProfile, bool) {
	return SecretaryProfile{}, i.Role == RoleSecretary
}

// AsPrincipal returns the principal profile when the identity is a principal.
func (i Identity) AsPrincipal() (PrincipalProfile, bool) {
	if i.Role != RolePrincipal {
		return PrincipalProfile{}, false
	}
	p, _ := i.Profile().(PrincipalProfile)
	return p, true
}

// AsAdmin returns the admin profile when the identity is an admin.
func (i Identity) AsAdmin() (AdminProfile, bool) {
	return AdminProfile{}, i.Role == RoleAdmin
}

// identityJSON is the wire form; the profile is keyed by the role.
type identityJSON struct {
	ID         string          `json:"id"`
	Email      string          `json:"email,omitempty"`
	Name       string          `json:"full_name"`
	Role       Role            `json:"role"`
	Phone      string          `json:"phone,omitempty"`
	SchoolID   string          `json:"current_school_id,omitempty"`
	SchoolName string          `json:"school_name,omitempty"`
	Active     bool            `json:"is_active"`
	Demo       bool            `json:"is_demo"`
	Profile    json.RawMessage `json:"profile,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (i Identity) MarshalJSON() ([]byte, error) {
	out := identityJSON{
		ID:         i.ID,
		Email:      i.Email,
		Name:       i.Name,
		Role:       i.Role,
		Phone:      i.Phone,
		SchoolID:   i.SchoolID,
		SchoolName: i.SchoolName,
		Active:     i.Active,
		Demo:       i.Demo,
	}
	if i.profile != nil {
		raw, err := json.Marshal(i.profile)
		if err != nil {
			return nil, fmt.Errorf("marshal %s profile: %w", i.Role, err)
		}
		out.Profile = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Unknown fields are ignored.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var in identityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*i = Identity{
		ID:         in.ID,
		Email:      in.Email,
		Name:       in.Name,
		Role:       in.Role,
		Phone:      in.Phone,
		SchoolID:   in.SchoolID,
		SchoolName: in.SchoolName,
		Active:     in.Active,
		Demo:       in.Demo,
	}
	if len(in.Profile) == 0 || string(in.Profile) == "null" {
		return nil
	}

	var p Profile
	switch in.Role {
	case RoleParent:
		var v ParentProfile
		if err := json.Unmarshal(in.Profile, &v); err != nil {
			return fmt.Errorf("decode parent profile: %w", err)
		}
		p = v
	case RoleStudent:
		var v StudentProfile
		if err := json.Unmarshal(in.Profile, &v); err != nil {
			return fmt.Errorf("decode student profile: %w", err)
		}
		p = v
	case RoleTeacher:
		var v TeacherProfile
		if err := json.Unmarshal(in.Profile, &v); err != nil {
			return fmt.Errorf("decode teacher profile: %w", err)
		}
		p = v
	case RolePrincipal:
		var v PrincipalProfile
		if err := json.Unmarshal(in.Profile, &v); err != nil {
			return fmt.Errorf("decode principal profile: %w", err)
		}
		p = v
	default:
		// Secretary, admin and roles this build does not know carry no profile fields.
		p = emptyProfile(in.Role)
	}
	i.profile = p
	return nil
}

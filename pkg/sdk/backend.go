package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// RemoteTimeout bounds every backend call made by this package.
const RemoteTimeout = 10 * time.Second

// Backend is the remote identity service the core depends on.
//
// Lookups return (nil, nil) when the backend has no matching row; an error
// means the call itself failed.
type Backend interface {
	// VerifyCredentials checks a login attempt. The returned ID may be a
	// legacy, non-canonical value.
	VerifyCredentials(ctx context.Context, identifier, secret string) (*VerifiedUser, error)

	FindUserByEmail(ctx context.Context, email string) (*UserRef, error)
	UpsertUser(ctx context.Context, record UserRecord) (*UserRef, error)
	GetUserWithSchool(ctx context.Context, id string) (*UserWithSchool, error)

	// UpdateSchoolPrincipal sets the principal display name on a school record.
	UpdateSchoolPrincipal(ctx context.Context, schoolID, name string) error

	// GetCurrentPrincipal returns the principal of the backend session, if any.
	GetCurrentPrincipal(ctx context.Context) (*Principal, error)

	// OnAuthStateChange registers fn for sign-in/out notifications. The
	// returned function unregisters it.
	OnAuthStateChange(fn func(AuthEvent)) (cancel func())

	// SignOut invalidates the backend session.
	SignOut(ctx context.Context) error
}

// VerifiedUser is the row returned by credential verification.
type VerifiedUser struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UserRef identifies a backend user row.
type UserRef struct {
	ID string `json:"id"`
}

// UserRecord is the payload for creating or updating a backend user row.
type UserRecord struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Active   bool   `json:"is_active"`
}

// School is the school a user is bound to.
type School struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PrincipalName string `json:"principal_name,omitempty"`
}

// UserWithSchool is a backend user row joined with its current school.
type UserWithSchool struct {
	ID              string  `json:"id"`
	Role            Role    `json:"role"`
	FullName        string  `json:"full_name,omitempty"`
	Email           string  `json:"email,omitempty"`
	CurrentSchoolID string  `json:"current_school_id,omitempty"`
	School          *School `json:"school,omitempty"`
}

// BoundSchool returns the school when the row is bound to one.
func (u *UserWithSchool) BoundSchool() (*School, bool) {
	if u == nil || u.CurrentSchoolID == "" || u.School == nil || u.School.ID == "" {
		return nil, false
	}
	return u.School, true
}

// Principal is the identity attached to the backend session.
type Principal struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Name     string         `json:"full_name,omitempty"`
	Role     Role           `json:"role"`
	SchoolID string         `json:"current_school_id,omitempty"`
	Demo     bool           `json:"is_demo"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Identity projects the principal onto an Identity. Role-specific metadata is
// decoded into the matching profile; undecodable metadata is dropped.
func (p Principal) Identity() Identity {
	id := Identity{
		ID:       p.ID,
		Email:    p.Email,
		Name:     p.Name,
		Role:     p.Role,
		Phone:    p.Phone,
		SchoolID: p.SchoolID,
		Active:   true,
		Demo:     p.Demo,
	}
	if len(p.Metadata) == 0 {
		return id
	}
	profile, err := decodeProfile(p.Role, p.Metadata)
	if err != nil || profile == nil {
		return id
	}
	withProfile, err := id.WithProfile(profile)
	if err != nil {
		return id
	}
	return withProfile
}

func decodeProfile(role Role, md map[string]any) (Profile, error) {
	target := emptyProfile(role)
	if target == nil {
		return nil, nil
	}
	var err error
	switch p := target.(type) {
	case ParentProfile:
		err = mapstructure.Decode(md, &p)
		target = p
	case StudentProfile:
		err = mapstructure.Decode(md, &p)
		target = p
	case TeacherProfile:
		err = mapstructure.Decode(md, &p)
		target = p
	case PrincipalProfile:
		err = mapstructure.Decode(md, &p)
		target = p
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", role, err)
	}
	return target, nil
}

// AuthEventType distinguishes auth-state-change notifications.
type AuthEventType string

const (
	AuthSignedIn  AuthEventType = "signed_in"
	AuthSignedOut AuthEventType = "signed_out"
	AuthRefreshed AuthEventType = "token_refreshed"
)

// AuthEvent is pushed by the backend when its session changes.
type AuthEvent struct {
	Type      AuthEventType
	Principal *Principal
}

// withRemoteTimeout applies RemoteTimeout unless ctx already has a deadline.
func withRemoteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, RemoteTimeout)
}

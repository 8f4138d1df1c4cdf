package server

import (
	"context"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/services/identity"
	"github.com/pensezy/edutrack/pkg/sdk"
)

// IdentityService is the contract the HTTP handlers need from the identity
// service.
type IdentityService interface {
	Login(ctx context.Context, req identity.LoginRequest) (*sdk.LoginResponse, error)
	Authenticate(ctx context.Context, token string) (auth.AuthenticatedPrincipal, error)
	Whoami(ctx context.Context, p auth.AuthenticatedPrincipal) (*sdk.Principal, error)
	Logout(ctx context.Context, p auth.AuthenticatedPrincipal) error

	FindUserByEmail(ctx context.Context, email string) (*sdk.UserRef, error)
	UpsertUser(ctx context.Context, p auth.AuthenticatedPrincipal, rec sdk.UserRecord) (*sdk.UserRef, error)
	GetUserWithSchool(ctx context.Context, id string) (*sdk.UserWithSchool, error)
	UpdateSchoolPrincipal(ctx context.Context, p auth.AuthenticatedPrincipal, schoolID, name string) error

	CountDemoAccounts(ctx context.Context) (int, error)
}

var _ IdentityService = (*identity.Service)(nil)

package auth

import (
	"context"

	"github.com/pensezy/edutrack/pkg/sdk"
)

// AuthenticatedPrincipal is the caller of an authenticated request.
type AuthenticatedPrincipal struct {
	// AccountID is the legacy account row that signed in.
	AccountID int64
	// UserID is the canonical user row, empty until one exists.
	UserID string
	Email  string
	Name   string
	Role   sdk.Role
	// SessionID is the token jti and the sessions.id row.
	SessionID string
	Demo      bool
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p AuthenticatedPrincipal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the authentication middleware.
func PrincipalFrom(ctx context.Context) (AuthenticatedPrincipal, bool) {
	p, ok := ctx.Value(principalKey{}).(AuthenticatedPrincipal)
	return p, ok
}

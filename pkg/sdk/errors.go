package sdk

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when sign-in is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRoleMismatch is returned when the only cached session belongs to another role.
	ErrRoleMismatch = errors.New("session role mismatch")

	// ErrNoSession is returned when nothing is cached for the requested role.
	ErrNoSession = errors.New("no session")

	// ErrReconciliation marks a non-fatal backend repair failure during sign-in.
	ErrReconciliation = errors.New("identity reconciliation incomplete")

	// ErrDetectionDegraded marks a mode detection that could not reach the backend.
	ErrDetectionDegraded = errors.New("data mode detection degraded")
)

// RoleMismatchError carries both roles so callers can prompt "please sign in as X".
type RoleMismatchError struct {
	Expected Role
	Actual   Role
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("%s: session is for %s, expected %s", ErrRoleMismatch, e.Actual, e.Expected)
}

// Is makes errors.Is(err, ErrRoleMismatch) succeed.
func (e *RoleMismatchError) Is(target error) bool {
	return target == ErrRoleMismatch
}

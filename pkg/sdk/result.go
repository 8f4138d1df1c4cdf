package sdk

import (
	"errors"
	"fmt"
)

// WarningStep names the resolver stage that produced a warning.
type WarningStep string

const (
	StepLookupByEmail   WarningStep = "lookup_by_email"
	StepUpsertUser      WarningStep = "upsert_user"
	StepPrincipalRepair WarningStep = "principal_repair"
	StepPersistSession  WarningStep = "persist_session"
)

// Warning is a recoverable problem encountered while resolving an identity.
// Warnings never block sign-in.
type Warning struct {
	Step WarningStep
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrReconciliation, w.Step, w.Err)
}

// Unwrap exposes both ErrReconciliation and the underlying cause.
func (w Warning) Unwrap() []error {
	return []error{ErrReconciliation, w.Err}
}

// Result is the outcome of a successful resolution.
type Result struct {
	Identity Identity
	Warnings []Warning
}

// Degraded reports whether any repair step failed.
func (r *Result) Degraded() bool {
	return r != nil && len(r.Warnings) > 0
}

// Err joins the warnings into one error, nil when there are none.
func (r *Result) Err() error {
	if r == nil || len(r.Warnings) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		errs = append(errs, w)
	}
	return errors.Join(errs...)
}

func (r *Result) warn(step WarningStep, err error) {
	r.Warnings = append(r.Warnings, Warning{Step: step, Err: err})
}

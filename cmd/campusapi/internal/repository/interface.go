package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// AccountRepository exposes persistence operations for login accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	CountDemo(ctx context.Context) (int, error)
}

// UserRepository exposes persistence operations for canonical user rows.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Upsert inserts the row or replaces its profile fields on id conflict.
	// CurrentSchoolID and Role are never changed by an upsert.
	Upsert(ctx context.Context, user *models.User) error
	BindSchool(ctx context.Context, userID, schoolID string) error
}

// SchoolRepository exposes persistence operations for schools.
type SchoolRepository interface {
	Create(ctx context.Context, school *models.School) error
	GetByID(ctx context.Context, id string) (*models.School, error)
	UpdatePrincipalName(ctx context.Context, id, name string) error
}

// SessionRepository exposes persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

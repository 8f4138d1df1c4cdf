package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/bunx"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
	"github.com/pensezy/edutrack/pkg/sdk"
)

// NewAccount describes an account provisioned by an operator.
type NewAccount struct {
	Email    string
	Phone    string
	FullName string
	Role     sdk.Role
	Password string
	Demo     bool
	// SchoolID binds the canonical user row to an existing school.
	SchoolID string
}

// CreateAccount stores a login account and, when an email is given, its
// canonical user row. The account signs in with its email, or its phone
// when no email is set.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*models.Account, *models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	phone := strings.TrimSpace(in.Phone)
	identifier := email
	if identifier == "" {
		identifier = phone
	}
	if identifier == "" {
		return nil, nil, fmt.Errorf("%w: email or phone is required", ErrValidation)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, nil, fmt.Errorf("%w: full name is required", ErrValidation)
	}
	if !in.Role.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	if in.SchoolID != "" {
		if _, err := s.schools.GetByID(ctx, in.SchoolID); err != nil {
			return nil, nil, fmt.Errorf("school %s: %w", in.SchoolID, err)
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	account := &models.Account{
		Identifier:   identifier,
		Email:        email,
		Phone:        phone,
		FullName:     in.FullName,
		Role:         string(in.Role),
		PasswordHash: hash,
		IsDemo:       in.Demo,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, nil, err
	}
	if email == "" {
		return account, nil, nil
	}

	user := &models.User{
		ID:       bunx.NewUUIDv7(),
		Email:    &email,
		FullName: in.FullName,
		Role:     string(in.Role),
		Phone:    phone,
		IsActive: true,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return account, nil, fmt.Errorf("create user row: %w", err)
	}
	if in.SchoolID != "" {
		if err := s.users.BindSchool(ctx, user.ID, in.SchoolID); err != nil {
			return account, user, fmt.Errorf("bind school: %w", err)
		}
		schoolID := in.SchoolID
		user.CurrentSchoolID = &schoolID
	}
	return account, user, nil
}

// CreateSchool stores a school, generating its ID when empty.
func (s *Service) CreateSchool(ctx context.Context, id, name string) (*models.School, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: school name is required", ErrValidation)
	}
	school := &models.School{ID: id, Name: strings.TrimSpace(name)}
	if err := s.schools.Create(ctx, school); err != nil {
		return nil, err
	}
	return school, nil
}

// Package identity implements account login, session tokens and the
// canonical user and school operations served to EduTrack clients.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/bunx"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/repository"
	"github.com/pensezy/edutrack/pkg/sdk"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
)

// DefaultSchoolCacheSize bounds the school lookup cache.
const DefaultSchoolCacheSize = 256

// Dependencies are the repositories and token issuer the service needs.
type Dependencies struct {
	Accounts repository.AccountRepository
	Users    repository.UserRepository
	Schools  repository.SchoolRepository
	Sessions repository.SessionRepository
	Tokens   *auth.TokenIssuer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithSchoolCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is safe for concurrent use.
type Service struct {
	accounts repository.AccountRepository
	users    repository.UserRepository
	schools  repository.SchoolRepository
	sessions repository.SessionRepository
	tokens   *auth.TokenIssuer

	cacheSize   int
	schoolCache *lru.Cache[string, models.School]
	now         func() time.Time
	log         zerolog.Logger
}

func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	if deps.Accounts == nil || deps.Users == nil || deps.Schools == nil || deps.Sessions == nil {
		return nil, fmt.Errorf("identity service: repositories are required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("identity service: token issuer is required")
	}
	s := &Service{
		accounts:  deps.Accounts,
		users:     deps.Users,
		schools:   deps.Schools,
		sessions:  deps.Sessions,
		tokens:    deps.Tokens,
		cacheSize: DefaultSchoolCacheSize,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	cache, err := lru.New[string, models.School](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create school cache: %w", err)
	}
	s.schoolCache = cache
	return s, nil
}

// LoginRequest is a credential check plus client metadata for the session row.
type LoginRequest struct {
	Identifier string
	Secret     string
	UserAgent  string
	IPAddress  string
}

// Login verifies the account password and opens a session. Unknown
// identifiers, wrong passwords and disabled accounts all map to
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*sdk.LoginResponse, error) {
	account, err := s.accounts.GetByIdentifier(ctx, req.Identifier)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if account.DisabledAt != nil || !auth.CheckPassword(account.PasswordHash, req.Secret) {
		return nil, ErrInvalidCredentials
	}
	role, err := sdk.ParseRole(account.Role)
	if err != nil {
		s.log.Error().Int64("account_id", account.ID).Str("role", account.Role).Msg("account has an unknown role")
		return nil, ErrInvalidCredentials
	}

	user := s.canonicalUser(ctx, account)

	sessionID := bunx.NewUUIDv7()
	token, expires, err := s.tokens.Issue(sessionID, account.ID, string(role))
	if err != nil {
		return nil, err
	}
	session := &models.Session{
		ID:        sessionID,
		AccountID: account.ID,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
		CreatedAt: s.now().UTC(),
		ExpiresAt: expires,
	}
	if user != nil {
		session.UserID = user.ID
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := s.accounts.TouchLastLogin(ctx, account.ID, s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Int64("account_id", account.ID).Msg("failed to record last login")
	}

	return &sdk.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expires,
		User: sdk.VerifiedUser{
			ID:       strconv.FormatInt(account.ID, 10),
			FullName: account.FullName,
			Role:     account.Role,
			Phone:    account.Phone,
			Email:    account.Email,
		},
		Principal: principalFor(account, role, user),
	}, nil
}

// Authenticate resolves a bearer token to its principal. Revoked or expired
// sessions are rejected even when the token itself is still valid.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.AuthenticatedPrincipal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return auth.AuthenticatedPrincipal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	session, err := s.sessions.GetByID(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return auth.AuthenticatedPrincipal{}, fmt.Errorf("%w: unknown session", ErrUnauthenticated)
	}
	if err != nil {
		return auth.AuthenticatedPrincipal{}, err
	}
	if !session.Active(s.now()) {
		return auth.AuthenticatedPrincipal{}, fmt.Errorf("%w: session ended", ErrUnauthenticated)
	}
	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		return auth.AuthenticatedPrincipal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if account.DisabledAt != nil {
		return auth.AuthenticatedPrincipal{}, fmt.Errorf("%w: account disabled", ErrUnauthenticated)
	}
	role, err := sdk.ParseRole(account.Role)
	if err != nil {
		return auth.AuthenticatedPrincipal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	principal := auth.AuthenticatedPrincipal{
		AccountID: account.ID,
		UserID:    session.UserID,
		Email:     account.Email,
		Name:      account.FullName,
		Role:      role,
		SessionID: session.ID,
		Demo:      account.IsDemo,
	}
	// the canonical row may have been created after login
	if principal.UserID == "" {
		if user := s.canonicalUser(ctx, account); user != nil {
			principal.UserID = user.ID
		}
	}
	return principal, nil
}

// Whoami returns the wire principal for an authenticated request.
func (s *Service) Whoami(ctx context.Context, p auth.AuthenticatedPrincipal) (*sdk.Principal, error) {
	account, err := s.accounts.GetByID(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	var user *models.User
	if p.UserID != "" {
		user, err = s.users.GetByID(ctx, p.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	if user == nil {
		user = s.canonicalUser(ctx, account)
	}
	principal := principalFor(account, p.Role, user)
	return &principal, nil
}

// Logout revokes the session behind the request.
func (s *Service) Logout(ctx context.Context, p auth.AuthenticatedPrincipal) error {
	if p.SessionID == "" {
		return ErrUnauthenticated
	}
	return s.sessions.Revoke(ctx, p.SessionID)
}

// FindUserByEmail returns repository.ErrNotFound when no row matches.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*sdk.UserRef, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &sdk.UserRef{ID: user.ID}, nil
}

// UpsertUser creates or updates a canonical user row on behalf of p.
// School binding is never changed here, and a stored role is never
// rewritten: a different role needs a new row. Callers other than admin
// may only write rows carrying their own role and email, and may only
// update the row they own.
func (s *Service) UpsertUser(ctx context.Context, p auth.AuthenticatedPrincipal, rec sdk.UserRecord) (*sdk.UserRef, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	if !rec.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, rec.Role)
	}
	admin := p.Role == sdk.RoleAdmin
	if !admin {
		if rec.Role != p.Role {
			return nil, fmt.Errorf("%w: cannot write a %s row as %s", ErrForbidden, rec.Role, p.Role)
		}
		if !sameEmail(rec.Email, p.Email) {
			return nil, fmt.Errorf("%w: email does not belong to the caller", ErrForbidden)
		}
	}

	existing, err := s.users.GetByID(ctx, rec.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if !admin && p.UserID != "" && p.UserID != rec.ID {
			return nil, fmt.Errorf("user %s: caller already owns %s: %w", rec.ID, p.UserID, repository.ErrConflict)
		}
	case err != nil:
		return nil, err
	default:
		if !admin && !ownsUser(p, existing) {
			return nil, fmt.Errorf("%w: user %s belongs to another account", ErrForbidden, rec.ID)
		}
		if existing.Role != string(rec.Role) {
			return nil, fmt.Errorf("user %s: role is %s: %w", rec.ID, existing.Role, repository.ErrConflict)
		}
	}

	user := &models.User{
		ID:       rec.ID,
		FullName: rec.FullName,
		Role:     string(rec.Role),
		Phone:    rec.Phone,
		IsActive: rec.Active,
	}
	if rec.Email != "" {
		email := rec.Email
		user.Email = &email
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return &sdk.UserRef{ID: user.ID}, nil
}

func ownsUser(p auth.AuthenticatedPrincipal, user *models.User) bool {
	if p.UserID != "" && p.UserID == user.ID {
		return true
	}
	return user.Email != nil && p.Email != "" && sameEmail(*user.Email, p.Email)
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// GetUserWithSchool loads a user row joined with its current school.
func (s *Service) GetUserWithSchool(ctx context.Context, id string) (*sdk.UserWithSchool, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	row := &sdk.UserWithSchool{
		ID:       user.ID,
		Role:     sdk.Role(user.Role),
		FullName: user.FullName,
	}
	if user.Email != nil {
		row.Email = *user.Email
	}
	if user.CurrentSchoolID == nil || *user.CurrentSchoolID == "" {
		return row, nil
	}
	row.CurrentSchoolID = *user.CurrentSchoolID

	school, err := s.school(ctx, row.CurrentSchoolID)
	if errors.Is(err, repository.ErrNotFound) {
		return row, nil
	}
	if err != nil {
		return nil, err
	}
	row.School = &sdk.School{ID: school.ID, Name: school.Name, PrincipalName: school.PrincipalName}
	return row, nil
}

// UpdateSchoolPrincipal sets the principal display name of a school. Admins
// may update any school; principals only the school they are bound to.
func (s *Service) UpdateSchoolPrincipal(ctx context.Context, p auth.AuthenticatedPrincipal, schoolID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	switch p.Role {
	case sdk.RoleAdmin:
	case sdk.RolePrincipal:
		if p.UserID == "" {
			return fmt.Errorf("%w: principal has no user row", ErrForbidden)
		}
		user, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		}
		if user.CurrentSchoolID == nil || *user.CurrentSchoolID != schoolID {
			return fmt.Errorf("%w: principal is not bound to school %s", ErrForbidden, schoolID)
		}
	default:
		return ErrForbidden
	}

	if err := s.schools.UpdatePrincipalName(ctx, schoolID, name); err != nil {
		return err
	}
	s.schoolCache.Remove(schoolID)
	s.log.Info().Str("school_id", schoolID).Str("by", p.SessionID).Msg("school principal updated")
	return nil
}

// CountDemoAccounts reports enabled accounts flagged as demonstration data.
func (s *Service) CountDemoAccounts(ctx context.Context) (int, error) {
	return s.accounts.CountDemo(ctx)
}

// PruneSessions deletes sessions that expired before now.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}

func (s *Service) school(ctx context.Context, id string) (models.School, error) {
	if school, ok := s.schoolCache.Get(id); ok {
		return school, nil
	}
	school, err := s.schools.GetByID(ctx, id)
	if err != nil {
		return models.School{}, err
	}
	s.schoolCache.Add(id, *school)
	return *school, nil
}

// canonicalUser finds the user row matching the account email. Lookup
// failures are logged and treated as no row.
func (s *Service) canonicalUser(ctx context.Context, account *models.Account) *models.User {
	if account.Email == "" {
		return nil
	}
	user, err := s.users.GetByEmail(ctx, account.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Int64("account_id", account.ID).Msg("canonical user lookup failed")
		}
		return nil
	}
	return user
}

func principalFor(account *models.Account, role sdk.Role, user *models.User) sdk.Principal {
	p := sdk.Principal{
		ID:    strconv.FormatInt(account.ID, 10),
		Email: account.Email,
		Phone: account.Phone,
		Name:  account.FullName,
		Role:  role,
		Demo:  account.IsDemo,
	}
	if user == nil {
		return p
	}
	p.ID = user.ID
	if user.FullName != "" {
		p.Name = user.FullName
	}
	if user.Phone != "" {
		p.Phone = user.Phone
	}
	if user.CurrentSchoolID != nil {
		p.SchoolID = *user.CurrentSchoolID
	}
	return p
}

package cmdutil

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/config"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/bunx"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/repository"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/services/identity"
)

// IdentityBundle bundles the service with its underlying DB connection so
// callers can reuse the connection for other work.
type IdentityBundle struct {
	Service *identity.Service
	DB      *bun.DB
}

// Close releases the underlying database connection.
func (b *IdentityBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// NewIdentityBundle connects to the configured database and wires the
// identity service over the bun repositories.
func NewIdentityBundle(cfg *config.Config, log zerolog.Logger) (*IdentityBundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxConns(cfg.MaxDBConnections))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	svc, err := identity.NewService(identity.Dependencies{
		Accounts: repository.NewBunAccountRepository(db),
		Users:    repository.NewBunUserRepository(db),
		Schools:  repository.NewBunSchoolRepository(db),
		Sessions: repository.NewBunSessionRepository(db),
		Tokens:   auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.ServerURL, cfg.Auth.SessionTTL),
	},
		identity.WithLogger(log),
		identity.WithSchoolCacheSize(cfg.Auth.SchoolCacheSize),
	)
	if err != nil {
		_ = bunx.Close(db)
		return nil, err
	}
	return &IdentityBundle{Service: svc, DB: db}, nil
}

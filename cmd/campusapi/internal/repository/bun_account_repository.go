package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunAccountRepository implements AccountRepository using Bun ORM
type BunAccountRepository struct {
	db *bun.DB
}

// NewBunAccountRepository creates a new Bun-based account repository
func NewBunAccountRepository(db *bun.DB) *BunAccountRepository {
	return &BunAccountRepository{db: db}
}

// NormalizeIdentifier lowercases and trims a login identifier.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r *BunAccountRepository) Create(ctx context.Context, account *models.Account) error {
	account.Identifier = NormalizeIdentifier(account.Identifier)
	if account.Identifier == "" {
		return fmt.Errorf("create account: identifier is required")
	}
	_, err := r.db.NewInsert().Model(account).Exec(ctx)
	return wrap("create account", err)
}

func (r *BunAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	account := new(models.Account)
	err := r.db.NewSelect().Model(account).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, wrap("get account", err)
	}
	return account, nil
}

// GetByIdentifier matches the email or phone the account signs in with.
func (r *BunAccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("identifier = ?", NormalizeIdentifier(identifier)).
		Scan(ctx)
	if err != nil {
		return nil, wrap("get account by identifier", err)
	}
	return account, nil
}

func (r *BunAccountRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrap("touch last login", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("touch last login: %w", ErrNotFound)
	}
	return nil
}

func (r *BunAccountRepository) CountDemo(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.Account)(nil)).
		Where("is_demo = ?", true).
		Where("disabled_at IS NULL").
		Count(ctx)
	if err != nil {
		return 0, wrap("count demo accounts", err)
	}
	return n, nil
}

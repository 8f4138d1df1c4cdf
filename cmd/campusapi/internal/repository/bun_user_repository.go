package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

func (r *BunUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	if err := r.db.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx); err != nil {
		return nil, wrap("get user", err)
	}
	return user, nil
}

// GetByEmail matches case-insensitively.
func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("get user by email: %w", ErrNotFound)
	}
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("lower(u.email) = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, wrap("get user by email", err)
	}
	return user, nil
}

func (r *BunUserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("upsert user: id is required")
	}
	if user.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*user.Email))
		if normalized == "" {
			user.Email = nil
		} else {
			user.Email = &normalized
		}
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(user).
		ExcludeColumn("current_school_id").
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("full_name = EXCLUDED.full_name").
		Set("phone = EXCLUDED.phone").
		Set("is_active = EXCLUDED.is_active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return wrap("upsert user", err)
}

func (r *BunUserRepository) BindSchool(ctx context.Context, userID, schoolID string) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("current_school_id = ?", schoolID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return wrap("bind school", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bind school: user %s: %w", userID, ErrNotFound)
	}
	return nil
}

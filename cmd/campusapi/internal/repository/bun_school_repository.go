package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/bunx"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunSchoolRepository implements SchoolRepository using Bun ORM
type BunSchoolRepository struct {
	db *bun.DB
}

// NewBunSchoolRepository creates a new Bun-based school repository
func NewBunSchoolRepository(db *bun.DB) *BunSchoolRepository {
	return &BunSchoolRepository{db: db}
}

// Create inserts the school, assigning a UUIDv7 when ID is empty.
func (r *BunSchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = bunx.NewUUIDv7()
	}
	_, err := r.db.NewInsert().Model(school).Exec(ctx)
	return wrap("create school", err)
}

func (r *BunSchoolRepository) GetByID(ctx context.Context, id string) (*models.School, error) {
	school := new(models.School)
	if err := r.db.NewSelect().Model(school).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, wrap("get school", err)
	}
	return school, nil
}

func (r *BunSchoolRepository) UpdatePrincipalName(ctx context.Context, id, name string) error {
	res, err := r.db.NewUpdate().
		Model((*models.School)(nil)).
		Set("principal_name = ?", name).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrap("update principal name", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update principal name: school %s: %w", id, ErrNotFound)
	}
	return nil
}

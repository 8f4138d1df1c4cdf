package migrations

import (
	"context"
	"fmt"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
	"github.com/pensezy/edutrack/pkg/sdk"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260901000001, down_20260901000001)
}

// up_20260901000001 seeds the school that demonstration accounts belong to
func up_20260901000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding demo school...")
	school := models.School{
		ID:   sdk.DemoSchoolID,
		Name: sdk.DemoSchoolName,
	}
	_, err := db.NewInsert().
		Model(&school).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed demo school: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20260901000001(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDelete().
		Model((*models.School)(nil)).
		Where("id = ?", sdk.DemoSchoolID).
		Exec(ctx)
	return err
}

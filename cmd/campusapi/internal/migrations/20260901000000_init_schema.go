package migrations

import (
	"context"
	"fmt"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260901000000, down_20260901000000)
}

// up_20260901000000 creates the school, account, user and session tables
func up_20260901000000(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		name  string
		model any
	}{
		{"schools", (*models.School)(nil)},
		{"accounts", (*models.Account)(nil)},
		{"users", (*models.User)(nil)},
		{"sessions", (*models.Session)(nil)},
	}

	for _, tbl := range tables {
		fmt.Printf(" [up] creating %s table...", tbl.name)
		q := db.NewCreateTable().Model(tbl.model).IfNotExists()
		if tbl.name == "users" {
			q = q.ForeignKey(`("current_school_id") REFERENCES "schools" ("id") ON DELETE SET NULL`)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", tbl.name, err)
		}
		fmt.Println(" OK")
	}

	fmt.Print(" [up] creating indexes...")
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_users_current_school ON users(current_school_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
	}
	if usesPostgres(db) {
		// case-insensitive email lookups
		indexes = append(indexes, `CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`)
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

// down_20260901000000 drops all tables in reverse order
func down_20260901000000(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{
		(*models.Session)(nil),
		(*models.User)(nil),
		(*models.Account)(nil),
		(*models.School)(nil),
	} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	fmt.Println(" [down] dropped campus tables")
	return nil
}

package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// usesPostgres gates the expression indexes only PostgreSQL supports.
func usesPostgres(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.PG
}

package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every schema migration, registered from init.
var Migrations = migrate.NewMigrations()

package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// wrap maps driver errors onto the package sentinels.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	// SQLSTATE 23505 on PostgreSQL, constraint text on SQLite
	return strings.Contains(msg, "23505") || strings.Contains(msg, "UNIQUE constraint failed")
}

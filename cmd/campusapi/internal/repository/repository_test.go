package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/bunx"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/db/models"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// setupTestDB opens an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)
	return db
}

func strPtr(s string) *string { return &s }

func TestBunAccountRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunAccountRepository(db)
	ctx := context.Background()

	account := &models.Account{
		Identifier:   "  Prof@Lycee.CM ",
		Email:        "prof@lycee.cm",
		FullName:     "Prof Atangana",
		Role:         "teacher",
		PasswordHash: "hash",
	}
	require.NoError(t, repo.Create(ctx, account))
	assert.NotZero(t, account.ID)
	assert.Equal(t, "prof@lycee.cm", account.Identifier)

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		got, err := repo.GetByIdentifier(ctx, "PROF@lycee.cm")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := repo.GetByIdentifier(ctx, "nobody@lycee.cm")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		err := repo.Create(ctx, &models.Account{Identifier: "prof@lycee.cm", FullName: "X", Role: "teacher", PasswordHash: "h"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("touch last login", func(t *testing.T) {
		require.NoError(t, repo.TouchLastLogin(ctx, account.ID, time.Now().UTC()))
		got, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.LastLoginAt)
		assert.ErrorIs(t, repo.TouchLastLogin(ctx, 9999, time.Now()), ErrNotFound)
	})

	t.Run("count demo", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.Account{Identifier: "qa.demo@lycee.cm", FullName: "QA", Role: "parent", PasswordHash: "h", IsDemo: true}))
		n, err := repo.CountDemo(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestBunUserRepository(t *testing.T) {
	db := setupTestDB(t)
	users := NewBunUserRepository(db)
	schools := NewBunSchoolRepository(db)
	ctx := context.Background()

	school := &models.School{Name: "Lycée Bilingue de Yaoundé"}
	require.NoError(t, schools.Create(ctx, school))
	require.NotEmpty(t, school.ID)

	user := &models.User{
		ID:       bunx.NewUUIDv7(),
		Email:    strPtr("Mama@School.cm"),
		FullName: "Mama Biya",
		Role:     "parent",
		IsActive: true,
	}
	require.NoError(t, users.Upsert(ctx, user))

	t.Run("find by email ignores case", func(t *testing.T) {
		got, err := users.GetByEmail(ctx, "MAMA@school.CM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		_, err = users.GetByEmail(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert updates profile fields", func(t *testing.T) {
		require.NoError(t, users.Upsert(ctx, &models.User{
			ID: user.ID, Email: strPtr("mama@school.cm"), FullName: "Maman Biya", Role: "parent", Phone: "+237690000111", IsActive: true,
		}))
		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Maman Biya", got.FullName)
		assert.Equal(t, "+237690000111", got.Phone)
	})

	t.Run("school binding survives upsert", func(t *testing.T) {
		require.NoError(t, users.BindSchool(ctx, user.ID, school.ID))
		require.NoError(t, users.Upsert(ctx, &models.User{ID: user.ID, FullName: "Maman Biya", Role: "parent", IsActive: true}))

		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CurrentSchoolID)
		assert.Equal(t, school.ID, *got.CurrentSchoolID)
		assert.Equal(t, "Maman Biya", got.FullName)
	})

	t.Run("role survives upsert", func(t *testing.T) {
		require.NoError(t, users.Upsert(ctx, &models.User{ID: user.ID, FullName: "Maman Biya", Role: "admin", IsActive: true}))

		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "parent", got.Role)
	})

	t.Run("fallback ids are accepted", func(t *testing.T) {
		require.NoError(t, users.Upsert(ctx, &models.User{ID: "1760000000000000000-0123456789abcdef", FullName: "Fallback", Role: "student"}))
		_, err := users.GetByID(ctx, "1760000000000000000-0123456789abcdef")
		assert.NoError(t, err)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := users.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, users.BindSchool(ctx, "nope", school.ID), ErrNotFound)
	})
}

func TestBunSchoolRepository_UpdatePrincipalName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunSchoolRepository(db)
	ctx := context.Background()

	school := &models.School{ID: "s-1", Name: "Collège Saint-Michel"}
	require.NoError(t, repo.Create(ctx, school))

	require.NoError(t, repo.UpdatePrincipalName(ctx, "s-1", "Dr. Ebogo"))
	got, err := repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Ebogo", got.PrincipalName)

	assert.ErrorIs(t, repo.UpdatePrincipalName(ctx, "s-404", "X"), ErrNotFound)
}

func TestBunSessionRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunSessionRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	live := &models.Session{ID: bunx.NewUUIDv7(), AccountID: 1, ExpiresAt: now.Add(time.Hour)}
	expired := &models.Session{ID: bunx.NewUUIDv7(), AccountID: 1, ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, expired))

	got, err := repo.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, got.Active(now))

	require.NoError(t, repo.Revoke(ctx, live.ID))
	got, err = repo.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.False(t, got.Active(now))
	assert.ErrorIs(t, repo.Revoke(ctx, "missing"), ErrNotFound)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetByID(ctx, expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

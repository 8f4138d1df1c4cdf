package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pensezy/edutrack/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "http://campus.test", time.Hour)

	token, expires, err := issuer.Issue("sess-1", 42, "teacher")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.ID)
	assert.Equal(t, "teacher", claims.Role)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "http://campus.test", time.Hour)
	token, _, err := issuer.Issue("sess-1", 1, "parent")
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		_, err := NewTokenIssuer("another-secret-another-secret-xx", "http://campus.test", time.Hour).Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		_, err := NewTokenIssuer(testSecret, "http://elsewhere", time.Hour).Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenIssuer(testSecret, "http://campus.test", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing jti", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "http://campus.test",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = issuer.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "wrong"))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestInitEnforcer(t *testing.T) {
	enforcer, err := InitEnforcer()
	require.NoError(t, err)

	tests := []struct {
		role   sdk.Role
		obj    string
		act    string
		expect bool
	}{
		{sdk.RoleParent, ObjectUser, UserRead, true},
		{sdk.RoleStudent, ObjectUser, UserWrite, true},
		{sdk.RoleTeacher, ObjectSchool, SchoolRead, true},
		{sdk.RoleTeacher, ObjectSchool, SchoolUpdatePrincipal, false},
		{sdk.RoleSecretary, ObjectSchool, SchoolUpdatePrincipal, false},
		{sdk.RolePrincipal, ObjectSchool, SchoolUpdatePrincipal, true},
		{sdk.RoleAdmin, ObjectSchool, SchoolUpdatePrincipal, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+" "+tt.act, func(t *testing.T) {
			ok, err := enforcer.Enforce(RoleSubject(string(tt.role)), tt.obj, tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, ok)
		})
	}

	ok, err := enforcer.Enforce(RoleSubject("janitor"), ObjectUser, UserRead)
	require.NoError(t, err)
	assert.False(t, ok, "unknown roles inherit nothing")
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), AuthenticatedPrincipal{AccountID: 7, Role: sdk.RoleParent})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), p.AccountID)
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// School is a tenant. Live data is only served to users bound to one.
type School struct {
	bun.BaseModel `bun:"table:schools,alias:sc"`

	ID            string    `bun:"id,pk,type:varchar(64)"`
	Name          string    `bun:"name,notnull"`
	PrincipalName string    `bun:"principal_name"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Account is a login credential row. Its integer ID is the legacy
// identifier returned by credential verification.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID           int64      `bun:"id,pk,autoincrement"`
	Identifier   string     `bun:"identifier,notnull,unique"` // lowercased email or phone
	Email        string     `bun:"email"`
	Phone        string     `bun:"phone"`
	FullName     string     `bun:"full_name,notnull"`
	Role         string     `bun:"role,notnull"`
	PasswordHash string     `bun:"password_hash,notnull"`
	IsDemo       bool       `bun:"is_demo,notnull,default:false"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	DisabledAt   *time.Time `bun:"disabled_at"`
}

// User is the canonical user row. IDs are UUIDv7 for rows created by the
// server; clients may upsert composite fallback IDs, hence varchar.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID              string    `bun:"id,pk,type:varchar(64)"`
	Email           *string   `bun:"email,unique"`
	FullName        string    `bun:"full_name,notnull"`
	Role            string    `bun:"role,notnull"`
	Phone           string    `bun:"phone"`
	IsActive        bool      `bun:"is_active,notnull,default:true"`
	CurrentSchoolID *string   `bun:"current_school_id,type:varchar(64)"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Session is an issued login session. The ID doubles as the token jti.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID        string    `bun:"id,pk,type:varchar(64)"`
	AccountID int64     `bun:"account_id,notnull"`
	UserID    string    `bun:"user_id,type:varchar(64)"`
	UserAgent string    `bun:"user_agent"`
	IPAddress string    `bun:"ip_address"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	Revoked   bool      `bun:"revoked,notnull,default:false"`
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	return s != nil && !s.Revoked && now.Before(s.ExpiresAt)
}

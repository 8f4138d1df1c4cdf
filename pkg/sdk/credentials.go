package sdk

import (
	"errors"
	"sync"
	"time"
)

// ErrNoCredentials is returned by a CredentialStore holding nothing.
var ErrNoCredentials = errors.New("not logged in")

// Credentials is the backend session token obtained at sign-in.
type Credentials struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	PrincipalID string    `json:"principal_id,omitempty"`
}

func (c *Credentials) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// CredentialStore persists the backend session token.
type CredentialStore interface {
	SaveCredentials(credentials *Credentials) error
	LoadCredentials() (*Credentials, error)
	DeleteCredentials() error
}

// MemoryCredentialStore keeps credentials for the life of the process.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) SaveCredentials(credentials *Credentials) error {
	cp := *credentials
	s.mu.Lock()
	s.creds = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryCredentialStore) LoadCredentials() (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil, ErrNoCredentials
	}
	cp := *s.creds
	return &cp, nil
}

func (s *MemoryCredentialStore) DeleteCredentials() error {
	s.mu.Lock()
	s.creds = nil
	s.mu.Unlock()
	return nil
}

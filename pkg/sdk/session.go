package sdk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// SessionRecordVersion is written into every persisted record.
const SessionRecordVersion = 1

// SessionTokenLength is the size of locally generated session tokens in bytes.
const SessionTokenLength = 32

// Slot names one partition of the session store.
type Slot string

// SlotCurrent is the unscoped fallback slot.
const SlotCurrent Slot = "current"

// Slots returns every slot a store may hold: one per role plus current.
func Slots() []Slot {
	out := make([]Slot, 0, len(Roles)+1)
	for _, r := range Roles {
		out = append(out, r.Namespace())
	}
	return append(out, SlotCurrent)
}

// SessionRecord is the persisted projection of an Identity.
type SessionRecord struct {
	Version      int       `json:"version"`
	Identity     Identity  `json:"identity"`
	LoggedInAt   time.Time `json:"logged_in_at"`
	SessionToken string    `json:"session_token"`
}

// NewSessionRecord stamps identity with a login time and a fresh token.
func NewSessionRecord(identity Identity, loggedInAt time.Time) (*SessionRecord, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}
	return &SessionRecord{
		Version:      SessionRecordVersion,
		Identity:     identity.Clone(),
		LoggedInAt:   loggedInAt.UTC(),
		SessionToken: token,
	}, nil
}

// GenerateSessionToken returns a hex encoded random token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, SessionTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// EncodeSessionRecord serializes a record for durable storage.
func EncodeSessionRecord(rec *SessionRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal session record: %w", err)
	}
	return data, nil
}

// DecodeSessionRecord parses a stored record. Unknown fields are ignored so
// records written by newer clients stay readable.
func DecodeSessionRecord(data []byte) (*SessionRecord, error) {
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	return &rec, nil
}

// SessionStore persists session records per slot.
//
// Load returns ErrNoSession when the slot is empty.
type SessionStore interface {
	Load(ctx context.Context, slot Slot) (*SessionRecord, error)
	Save(ctx context.Context, slot Slot, rec *SessionRecord) error
	Delete(ctx context.Context, slot Slot) error
	// Clear removes every role slot and the current slot.
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process SessionStore. Records are stored encoded so
// callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Slot][]byte
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Slot][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, slot Slot) (*SessionRecord, error) {
	s.mu.RLock()
	data, ok := s.records[slot]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	return DecodeSessionRecord(data)
}

func (s *MemoryStore) Save(_ context.Context, slot Slot, rec *SessionRecord) error {
	data, err := EncodeSessionRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[slot] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, slot Slot) error {
	s.mu.Lock()
	delete(s.records, slot)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	clear(s.records)
	s.mu.Unlock()
	return nil
}

// Len returns the number of occupied slots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

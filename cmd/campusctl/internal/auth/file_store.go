package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pensezy/edutrack/pkg/sdk"
)

const (
	credentialsFile = "credentials.json"
	sessionsDir     = "sessions"
)

// FileStore keeps session records and the backend token as JSON files under
// one directory:
//
//	<dir>/credentials.json
//	<dir>/sessions/<slot>.json
//
// Writes go through a temp file and a rename so a crash never leaves a
// truncated record behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var (
	_ sdk.CredentialStore = (*FileStore)(nil)
	_ sdk.SessionStore    = (*FileStore)(nil)
)

// DefaultDir returns ~/.edutrack.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".edutrack"), nil
}

// NewFileStore creates dir and its sessions directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, sessionsDir), 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) slotPath(slot sdk.Slot) (string, error) {
	for _, known := range sdk.Slots() {
		if slot == known {
			return filepath.Join(s.dir, sessionsDir, string(slot)+".json"), nil
		}
	}
	return "", fmt.Errorf("unknown session slot %q", slot)
}

func (s *FileStore) Load(_ context.Context, slot sdk.Slot) (*sdk.SessionRecord, error) {
	path, err := s.slotPath(slot)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, sdk.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", slot, err)
	}
	return sdk.DecodeSessionRecord(data)
}

func (s *FileStore) Save(_ context.Context, slot sdk.Slot, rec *sdk.SessionRecord) error {
	path, err := s.slotPath(slot)
	if err != nil {
		return err
	}
	data, err := sdk.EncodeSessionRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(path, data)
}

func (s *FileStore) Delete(_ context.Context, slot sdk.Slot) error {
	path, err := s.slotPath(slot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(path)
}

// Clear removes every slot file. Credentials are left in place.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, slot := range sdk.Slots() {
		path := filepath.Join(s.dir, sessionsDir, string(slot)+".json")
		if err := removeIfExists(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveCredentials saves the credentials to the file.
func (s *FileStore) SaveCredentials(credentials *sdk.Credentials) error {
	data, err := json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(filepath.Join(s.dir, credentialsFile), data)
}

// LoadCredentials loads the credentials from the file.
func (s *FileStore) LoadCredentials() (*sdk.Credentials, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, credentialsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, sdk.ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds sdk.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

// DeleteCredentials deletes the credentials file.
func (s *FileStore) DeleteCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(filepath.Join(s.dir, credentialsFile))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Package storage provides the SessionStore backends. The persisted
// layout is deliberately plain: one scalar entry for the session token,
// one for its establishment time, one for the pending-NIK scratch value.
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

const (
	tokenFile       = "session_token"
	establishedFile = "session_established"
	pendingFile     = "pending_nik"
)

// FileStore persists the scalar entries as files under a state directory.
// This is the canonical client-local backend.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) SaveToken(token string, establishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(tokenFile, token); err != nil {
		return err
	}
	return s.write(establishedFile, establishedAt.UTC().Format(time.RFC3339))
}

func (s *FileStore) LoadToken() (string, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.read(tokenFile)
	if !ok || token == "" {
		return "", time.Time{}, false
	}
	// A missing or garbled timestamp still yields a usable token; the
	// zero time simply disables the local age ceiling for this session.
	var establishedAt time.Time
	if raw, ok := s.read(establishedFile); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			establishedAt = ts
		}
	}
	return token, establishedAt, true
}

func (s *FileStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.removeEntry(tokenFile); err != nil {
		return err
	}
	return s.removeEntry(establishedFile)
}

func (s *FileStore) SavePendingNIK(nik string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(pendingFile, nik)
}

func (s *FileStore) LoadPendingNIK() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nik, ok := s.read(pendingFile)
	if !ok || nik == "" {
		return "", false
	}
	return nik, true
}

func (s *FileStore) ClearPendingNIK() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeEntry(pendingFile)
}

func (s *FileStore) write(name, value string) error {
	return os.WriteFile(filepath.Join(s.dir, name), []byte(value+"\n"), 0o600)
}

func (s *FileStore) read(name string) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(raw)), true
}

func (s *FileStore) removeEntry(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ domain.SessionStore = (*FileStore)(nil)

package storage

import (
	"sync"
	"time"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

// MemoryStore keeps the session entries in process memory. Used for
// ephemeral runs and as the default store in tests.
type MemoryStore struct {
	mu            sync.Mutex
	token         string
	establishedAt time.Time
	pendingNIK    string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveToken(token string, establishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.establishedAt = establishedAt
	return nil
}

func (s *MemoryStore) LoadToken() (string, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", time.Time{}, false
	}
	return s.token, s.establishedAt, true
}

func (s *MemoryStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.establishedAt = time.Time{}
	return nil
}

func (s *MemoryStore) SavePendingNIK(nik string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingNIK = nik
	return nil
}

func (s *MemoryStore) LoadPendingNIK() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingNIK == "" {
		return "", false
	}
	return s.pendingNIK, true
}

func (s *MemoryStore) ClearPendingNIK() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingNIK = ""
	return nil
}

// HasToken reports whether a token is currently stored.
func (s *MemoryStore) HasToken() bool {
	_, _, ok := s.LoadToken()
	return ok
}

var _ domain.SessionStore = (*MemoryStore)(nil)

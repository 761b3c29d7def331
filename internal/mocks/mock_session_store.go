package mocks

import (
	"sync"
	"time"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

// MockSessionStore implements domain.SessionStore for testing. It behaves
// like an in-memory store unless the func fields override an operation.
type MockSessionStore struct {
	SaveTokenFunc  func(token string, establishedAt time.Time) error
	ClearTokenFunc func() error

	mu            sync.Mutex
	token         string
	establishedAt time.Time
	pendingNIK    string
	ClearedTokens int
}

// NewMockSessionStore creates an empty MockSessionStore.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{}
}

// Seed pre-loads a stored session, as if a prior run persisted it.
func (m *MockSessionStore) Seed(token string, establishedAt time.Time) *MockSessionStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.establishedAt = establishedAt
	return m
}

func (m *MockSessionStore) SaveToken(token string, establishedAt time.Time) error {
	if m.SaveTokenFunc != nil {
		return m.SaveTokenFunc(token, establishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.establishedAt = establishedAt
	return nil
}

func (m *MockSessionStore) LoadToken() (string, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", time.Time{}, false
	}
	return m.token, m.establishedAt, true
}

func (m *MockSessionStore) ClearToken() error {
	if m.ClearTokenFunc != nil {
		return m.ClearTokenFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.establishedAt = time.Time{}
	m.ClearedTokens++
	return nil
}

func (m *MockSessionStore) SavePendingNIK(nik string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingNIK = nik
	return nil
}

func (m *MockSessionStore) LoadPendingNIK() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingNIK == "" {
		return "", false
	}
	return m.pendingNIK, true
}

func (m *MockSessionStore) ClearPendingNIK() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingNIK = ""
	return nil
}

// HasToken reports whether a token is currently stored.
func (m *MockSessionStore) HasToken() bool {
	_, _, ok := m.LoadToken()
	return ok
}

// Compile-time interface compliance verification
var _ domain.SessionStore = (*MockSessionStore)(nil)

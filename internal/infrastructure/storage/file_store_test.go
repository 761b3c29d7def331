package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_TokenRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, _, ok := store.LoadToken()
	assert.False(t, ok, "fresh store should have no token")

	established := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.SaveToken("abc123", established))

	token, ts, ok := store.LoadToken()
	require.True(t, ok)
	assert.Equal(t, "abc123", token)
	assert.True(t, ts.Equal(established))

	require.NoError(t, store.ClearToken())
	_, _, ok = store.LoadToken()
	assert.False(t, ok, "token should be gone after clear")
}

func TestFileStore_PendingNIKRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.LoadPendingNIK()
	assert.False(t, ok)

	require.NoError(t, store.SavePendingNIK("1234567890123456"))
	nik, ok := store.LoadPendingNIK()
	require.True(t, ok)
	assert.Equal(t, "1234567890123456", nik)

	require.NoError(t, store.ClearPendingNIK())
	_, ok = store.LoadPendingNIK()
	assert.False(t, ok)
}

func TestFileStore_ClearIsIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.ClearToken())
	require.NoError(t, store.ClearPendingNIK())
}

func TestFileStore_GarbledTimestampStillYieldsToken(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.SaveToken("tok", time.Now()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session_established"), []byte("not-a-time\n"), 0o600))

	token, ts, ok := store.LoadToken()
	require.True(t, ok)
	assert.Equal(t, "tok", token)
	assert.True(t, ts.IsZero(), "garbled timestamp should degrade to zero time")
}

func TestFileStore_EntriesArePlainScalars(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.SaveToken("tok", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	raw, err := os.ReadFile(filepath.Join(dir, "session_token"))
	require.NoError(t, err)
	assert.Equal(t, "tok\n", string(raw), "token entry must be a plain string, no envelope")
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()

	_, _, ok := store.LoadToken()
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, store.SaveToken("tok", now))
	token, ts, ok := store.LoadToken()
	require.True(t, ok)
	assert.Equal(t, "tok", token)
	assert.Equal(t, now, ts)

	require.NoError(t, store.SavePendingNIK("1111222233334444"))
	nik, ok := store.LoadPendingNIK()
	require.True(t, ok)
	assert.Equal(t, "1111222233334444", nik)

	require.NoError(t, store.ClearToken())
	require.NoError(t, store.ClearPendingNIK())
	_, _, ok = store.LoadToken()
	assert.False(t, ok)
	_, ok = store.LoadPendingNIK()
	assert.False(t, ok)
}

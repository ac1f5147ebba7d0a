// ABOUTME: Tests for the SQLite-backed KV store
// ABOUTME: Verifies schema bootstrap, upserts, removal, and reopen durability

package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestKV(t *testing.T) *SQLiteKV {
	t.Helper()
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestSQLiteKV_GetMissing(t *testing.T) {
	kv := createTestKV(t)

	_, ok, err := kv.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteKV_SetGet(t *testing.T) {
	kv := createTestKV(t)

	require.NoError(t, kv.Set("chat.session", "sess-1"))

	val, ok, err := kv.Get("chat.session")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sess-1", val)
}

func TestSQLiteKV_SetOverwrites(t *testing.T) {
	kv := createTestKV(t)

	require.NoError(t, kv.Set("k", "first"))
	require.NoError(t, kv.Set("k", "second"))

	val, ok, err := kv.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", val)
}

func TestSQLiteKV_Remove(t *testing.T) {
	kv := createTestKV(t)

	require.NoError(t, kv.Set("k", "v"))
	require.NoError(t, kv.Remove("k"))

	_, ok, err := kv.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent key is not an error.
	require.NoError(t, kv.Remove("k"))
}

func TestSQLiteKV_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("chat.messages", `[{"id":"m1"}]`))
	require.NoError(t, kv.Close())

	kv, err = NewSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()

	val, ok, err := kv.Get("chat.messages")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"m1"}]`, val)
}

func TestSQLiteKV_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set("k", "v"))
}

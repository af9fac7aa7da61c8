// ABOUTME: Tests for the Storage backends: memory, SQLite and sealed wrapper
// ABOUTME: Runs the same contract against every backend, plus backend specifics

package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupSQLiteStorage creates a temporary SQLite storage for testing.
func setupSQLiteStorage(t *testing.T, namespace string) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "storage.db")

	s, err := NewSQLiteStorage(dbPath, namespace)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	sealed, err := NewSealed(NewMemoryStorage(), testKey())
	require.NoError(t, err)

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": setupSQLiteStorage(t, "admin"),
		"sealed": sealed,
	}
}

func TestStorage_Contract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok, "missing key should report ok=false")

			require.NoError(t, s.Set(ctx, "admin_access_token", "tok1"))
			v, ok, err := s.Get(ctx, "admin_access_token")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "tok1", v)

			require.NoError(t, s.Set(ctx, "admin_access_token", "tok2"))
			v, _, err = s.Get(ctx, "admin_access_token")
			require.NoError(t, err)
			assert.Equal(t, "tok2", v, "set should replace")

			require.NoError(t, s.Set(ctx, "admin-auth-storage", "{}"))
			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"admin-auth-storage", "admin_access_token"}, keys)

			require.NoError(t, s.Remove(ctx, "admin_access_token"))
			require.NoError(t, s.Remove(ctx, "admin_access_token"), "removing twice should succeed")
			_, ok, err = s.Get(ctx, "admin_access_token")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryStorage_ClosedIsUnavailable(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), ErrUnavailable)
	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Remove(ctx, "k"), ErrUnavailable)
}

func TestSQLiteStorage_NamespacesAreIsolated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	admin, err := NewSQLiteStorage(dbPath, "admin")
	require.NoError(t, err)

	require.NoError(t, admin.Set(ctx, "token", "admin-value"))
	require.NoError(t, admin.Close())

	partner, err := NewSQLiteStorage(dbPath, "partner")
	require.NoError(t, err)
	defer partner.Close()

	_, ok, err := partner.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok, "partner namespace should not see admin keys")
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "storage.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(dbPath, "partner")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "partner_access_token", "abc"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStorage(dbPath, "partner")
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "partner_access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestSQLiteStorage_ClosedIsUnavailable(t *testing.T) {
	s := setupSQLiteStorage(t, "admin")
	require.NoError(t, s.Close())

	err := s.Set(context.Background(), "k", "v")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSealed_ValuesAreEncryptedAtRest(t *testing.T) {
	inner := NewMemoryStorage()
	s, err := NewSealed(inner, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "admin_access_token", "tok1"))

	raw, ok, err := inner.Get(ctx, "admin_access_token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(raw, sealedPrefix))
	assert.NotContains(t, raw, "tok1")
}

func TestSealed_RejectsTamperedAndForeignValues(t *testing.T) {
	inner := NewMemoryStorage()
	s, err := NewSealed(inner, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, inner.Set(ctx, "plain", "not sealed"))
	_, _, err = s.Get(ctx, "plain")
	assert.ErrorIs(t, err, ErrUnavailable)

	// A sealed value moved to another key must not open: the key is associated data.
	require.NoError(t, s.Set(ctx, "a", "secret"))
	raw, _, _ := inner.Get(ctx, "a")
	require.NoError(t, inner.Set(ctx, "b", raw))
	_, _, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrUnavailable)

	other, err := NewSealed(inner, []byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	_, _, err = other.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestParseSealKey(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		wantErr bool
	}{
		{name: "valid", encoded: "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="},
		{name: "not base64", encoded: "!!!", wantErr: true},
		{name: "too short", encoded: "c2hvcnQ=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseSealKey(tt.encoded)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testKey(), key)
		})
	}
}

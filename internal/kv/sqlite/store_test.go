package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annpale/discovery/internal/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(StoreConfig{Path: filepath.Join(t.TempDir(), "discovery.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "search-history-u1", []byte(`[{"id":"e1"}]`)))

	value, err := store.Get(ctx, "search-history-u1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"e1"}]`, string(value))

	// Upsert overwrites.
	require.NoError(t, store.Set(ctx, "search-history-u1", []byte(`[]`)))
	value, err = store.Get(ctx, "search-history-u1")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(value))
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	// Deleting a missing key is a no-op.
	require.NoError(t, store.Delete(ctx, "k"))
}

func TestStoreKeysPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "privacy-settings-u1", []byte("{}")))
	require.NoError(t, store.Set(ctx, "privacy-settings-u2", []byte("{}")))
	require.NoError(t, store.Set(ctx, "privacy-settingz", []byte("{}")))
	require.NoError(t, store.Set(ctx, "user-profile-u1", []byte("{}")))

	keys, err := store.Keys(ctx, "privacy-settings-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"privacy-settings-u1", "privacy-settings-u2"}, keys)
}

func TestStoreReopenPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "discovery.db")

	store, err := NewStore(StoreConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	require.NoError(t, store.Close())

	reopened, err := NewStore(StoreConfig{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, "searci", prefixEnd("search"))
	assert.Equal(t, "b", prefixEnd("a"))
	assert.Less(t, "search-history-zzz", prefixEnd("search-history-"))
}

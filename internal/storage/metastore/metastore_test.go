package metastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(Config{DataDir: t.TempDir()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	return store
}

func TestStoreSetGetDeleteList(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "pipelines", "p1", []byte("alpha")))
	require.NoError(t, store.Set(ctx, "pipelines", "p2", []byte("beta")))

	v, found, err := store.Get(ctx, "pipelines", "p1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "alpha", string(v))

	all, err := store.List(ctx, "pipelines")
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, store.Delete(ctx, "pipelines", "p1"))

	_, found, err = store.Get(ctx, "pipelines", "p1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestStoreUnknownTable(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	_, _, err := store.Get(context.Background(), "bogus", "key")
	require.Error(t, err)
}

func TestSecretBoxRianAPIKey(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	secrets := store.Secrets()
	ctx := context.Background()

	_, found, err := secrets.GetRianAPIKey(ctx)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, secrets.SetRianAPIKey(ctx, "sk-test-123"))

	key, found, err := secrets.GetRianAPIKey(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "sk-test-123", key)
}

func TestSecretBoxGenericKeys(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	secrets := store.Secrets()
	ctx := context.Background()

	require.NoError(t, secrets.Set(ctx, "webhook_token", []byte("tok")))

	v, found, err := secrets.Get(ctx, "webhook_token")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "tok", string(v))

	require.NoError(t, secrets.Delete(ctx, "webhook_token"))

	_, found, err = secrets.Get(ctx, "webhook_token")
	require.NoError(t, err)
	require.False(t, found)
}

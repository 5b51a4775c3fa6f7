package slots

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:", Codec{}), s
}

func stores(t *testing.T) map[string]Store {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "slots"), Codec{})
	require.NoError(t, err)
	rs, _ := newRedisStore(t)
	return map[string]Store{"file": fs, "redis": rs}
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			b := testSlot("b", []byte("second"))
			a := testSlot("a", []byte("first"))
			require.NoError(t, store.Save(ctx, b))
			require.NoError(t, store.Save(ctx, a))

			got, err := store.Load(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, a, got)

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a", list[0].Name)
			assert.Equal(t, b.Header, list[1])

			replaced := testSlot("a", []byte("third"))
			require.NoError(t, store.Save(ctx, replaced))
			got, err = store.Load(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("third"), got.Data)

			require.NoError(t, store.Delete(ctx, "a"))
			_, err = store.Load(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, "a"), ErrNotFound)

			list, err = store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestStore_RejectsBadNames(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Save(ctx, testSlot("../escape", nil)), ErrInvalidName)
			_, err := store.Load(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidName)
			assert.ErrorIs(t, store.Delete(ctx, "a/b"), ErrInvalidName)
		})
	}
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, Codec{})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), testSlot("one", []byte{1})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "one.sav", entries[0].Name())
}

func TestFileStore_ListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, Codec{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.sav"), 0o755))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStore_CancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), Codec{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, testSlot("x", nil)), context.Canceled)
}

func TestRedisStore_Keys(t *testing.T) {
	ctx := context.Background()
	store, srv := newRedisStore(t)
	require.NoError(t, store.Save(ctx, testSlot("k", []byte("v"))))

	assert.True(t, srv.Exists("test:slot:k"))
	members, err := srv.Members("test:slots")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, members)

	require.NoError(t, store.Delete(ctx, "k"))
	assert.False(t, srv.Exists("test:slot:k"))
}

func TestRedisStore_ListSkipsDanglingIndexEntries(t *testing.T) {
	ctx := context.Background()
	store, srv := newRedisStore(t)
	require.NoError(t, store.Save(ctx, testSlot("kept", []byte("v"))))
	_, err := srv.SAdd("test:slots", "ghost")
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kept", list[0].Name)
}

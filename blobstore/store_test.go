package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeTests runs the Store contract against an implementation.
func storeTests(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "ckpt/round-1", []byte("one")))
	require.NoError(t, s.Put(ctx, "ckpt/round-2", []byte("two")))
	require.NoError(t, s.Put(ctx, "other", []byte("x")))

	data, err := s.Get(ctx, "ckpt/round-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	// Overwrite replaces.
	require.NoError(t, s.Put(ctx, "ckpt/round-1", []byte("one-v2")))
	data, err = s.Get(ctx, "ckpt/round-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one-v2"), data)

	names, err := s.List(ctx, "ckpt/")
	require.NoError(t, err)
	assert.Equal(t, []string{"ckpt/round-1", "ckpt/round-2"}, names)

	require.NoError(t, s.Delete(ctx, "ckpt/round-1"))
	_, err = s.Get(ctx, "ckpt/round-1")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing blob is not an error.
	require.NoError(t, s.Delete(ctx, "ckpt/round-1"))
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	storeTests(t, s)
}

func TestMemoryStore_GetCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "a", []byte{1, 2, 3}))

	data, err := s.Get(ctx, "a")
	require.NoError(t, err)
	data[0] = 9

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, again)
}

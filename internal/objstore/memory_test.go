package objstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hspatel/fileshare/internal/config"
)

func TestMemoryStorePutPresignDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "key-1", strings.NewReader("hello"), 5))
	require.True(t, store.Has("key-1"))

	link, err := store.PresignedGetURL(ctx, "key-1", "report 1.pdf", time.Hour)
	require.NoError(t, err)
	require.Contains(t, link, "key-1")
	require.Contains(t, link, "filename=report+1.pdf")

	require.NoError(t, store.Delete(ctx, "key-1"))
	require.False(t, store.Has("key-1"))

	// Deleting a missing key is success.
	require.NoError(t, store.Delete(ctx, "key-1"))
}

func TestMemoryStorePresignMissingKey(t *testing.T) {
	store := NewMemory()
	_, err := store.PresignedGetURL(context.Background(), "absent", "a.txt", time.Hour)
	require.Error(t, err)
}

func TestMemoryStorePutSizeMismatch(t *testing.T) {
	store := NewMemory()
	err := store.Put(context.Background(), "key", strings.NewReader("abc"), 10)
	require.Error(t, err)
}

func TestFactoryRegistry(t *testing.T) {
	store, err := New(config.ObjectStoreConfig{Type: "memory"})
	require.NoError(t, err)
	require.NotNil(t, store)

	_, err = New(config.ObjectStoreConfig{Type: "bogus"})
	require.Error(t, err)

	_, err = New(config.ObjectStoreConfig{})
	require.Error(t, err)
}

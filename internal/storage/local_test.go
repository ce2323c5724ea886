package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "public")
	store, err := NewLocalStore(root, "http://localhost:8080/storage/")
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Put(ctx, "cars", ".JPG", strings.NewReader("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "cars/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.Equal(t, "http://localhost:8080/storage/"+key, store.URL(key))

	require.NoError(t, store.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, key), "deleting twice is fine")
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/storage")
	require.NoError(t, err)

	for _, p := range []string{"", "/etc/passwd", "../secret", "cars/../../secret"} {
		assert.ErrorIs(t, store.Delete(context.Background(), p), ErrInvalidPath, p)
	}
}

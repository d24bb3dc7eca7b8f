package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"leasehub/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutAndDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Put(ctx, "leases/1/2/abc.html", "text/html", []byte("<p>lease</p>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "file://"))

	data, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
	require.NoError(t, err)
	assert.Equal(t, "<p>lease</p>", string(data))

	require.NoError(t, store.Delete(ctx, ref))
	_, err = os.Stat(strings.TrimPrefix(ref, "file://"))
	assert.True(t, os.IsNotExist(err))

	// 重复删除不报错
	assert.NoError(t, store.Delete(ctx, ref))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Provider: "ftp"})
	assert.Error(t, err)

	store, err := New(context.Background(), config.StorageConfig{Provider: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)
}

package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electrohogar/catalogo/internal/catalog"
	"github.com/electrohogar/catalogo/pkg/storage"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	disk := storage.NewLocalDisk(t.TempDir(), "http://localhost:8080/storage")
	store := catalog.NewDiskStore(disk)
	ctx := context.Background()

	key := "electrodomesticos/123-0-foto.jpg"
	require.NoError(t, store.Upload(ctx, key, strings.NewReader("jpegdata")))

	url := store.ResolveURL(key)
	assert.Equal(t, "http://localhost:8080/storage/"+key, url)

	data, err := disk.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))

	require.NoError(t, store.Delete(ctx, url))
	assert.False(t, disk.Exists(key))
}

func TestDiskStoreDeleteForeignURL(t *testing.T) {
	disk := storage.NewLocalDisk(t.TempDir(), "http://localhost:8080/storage")
	store := catalog.NewDiskStore(disk)

	err := store.Delete(context.Background(), "https://otro.cdn/x.jpg")
	assert.Error(t, err, "urls from another disk must be rejected, not silently ignored")
}

func TestDiskStoreDeleteMissingObjectIsNoError(t *testing.T) {
	disk := storage.NewLocalDisk(t.TempDir(), "http://localhost:8080/storage")
	store := catalog.NewDiskStore(disk)

	// Local disks tolerate deleting what is already gone.
	err := store.Delete(context.Background(), "http://localhost:8080/storage/electrodomesticos/nada.jpg")
	assert.NoError(t, err)
}

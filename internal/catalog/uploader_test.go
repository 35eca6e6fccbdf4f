package catalog_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electrohogar/catalogo/internal/catalog"
)

// fakeFileStore records uploads and deletes in memory. failOn makes the
// n-th upload (1-based) fail.
type fakeFileStore struct {
	mu       sync.Mutex
	keys     []string
	contents map[string]string
	deleted  []string
	failOn   int
	delErr   error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{contents: make(map[string]string)}
}

func (f *fakeFileStore) Upload(_ context.Context, key string, content io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn > 0 && len(f.keys)+1 == f.failOn {
		return errors.New("disk full")
	}
	data, _ := io.ReadAll(content)
	f.keys = append(f.keys, key)
	f.contents[key] = string(data)
	return nil
}

func (f *fakeFileStore) ResolveURL(key string) string {
	return "https://files.test/" + key
}

func (f *fakeFileStore) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, url)
	return nil
}

func files(names ...string) []catalog.File {
	out := make([]catalog.File, len(names))
	for i, n := range names {
		out[i] = catalog.File{Name: n, Content: strings.NewReader("data-" + n)}
	}
	return out
}

func TestUploadEmptyBatch(t *testing.T) {
	u := catalog.NewUploader(newFakeFileStore())
	urls, err := u.Upload(context.Background(), nil, "electrodomesticos")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestUploadKeepsInputOrder(t *testing.T) {
	store := newFakeFileStore()
	u := catalog.NewUploader(store)

	urls, err := u.Upload(context.Background(), files("front.jpg", "back.jpg", "side.jpg"), "electrodomesticos")
	require.NoError(t, err)
	require.Len(t, urls, 3)

	for i, name := range []string{"front.jpg", "back.jpg", "side.jpg"} {
		assert.True(t, strings.HasSuffix(urls[i], name), "url %d should end with %s, got %s", i, name, urls[i])
		assert.Equal(t, "data-"+name, store.contents[store.keys[i]])
	}
}

func TestUploadDuplicateNamesGetUniqueKeys(t *testing.T) {
	store := newFakeFileStore()
	u := catalog.NewUploader(store)

	urls, err := u.Upload(context.Background(), files("foto.jpg", "foto.jpg"), "electrodomesticos")
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.NotEqual(t, urls[0], urls[1])
	assert.NotEqual(t, store.keys[0], store.keys[1])
}

func TestUploadKeySanitizesFilename(t *testing.T) {
	store := newFakeFileStore()
	u := catalog.NewUploader(store)

	_, err := u.Upload(context.Background(),
		files("../../etc/passwd", "mi foto bonita.jpg", ""), "electrodomesticos")
	require.NoError(t, err)

	for _, key := range store.keys {
		assert.True(t, strings.HasPrefix(key, "electrodomesticos/"), "key %q must stay under the prefix", key)
		rest := strings.TrimPrefix(key, "electrodomesticos/")
		assert.NotContains(t, rest, "/", "key %q must not contain extra path segments", key)
		assert.NotContains(t, key, " ")
	}
	assert.True(t, strings.HasSuffix(store.keys[2], "archivo"))
}

func TestUploadStopsAtFirstFailure(t *testing.T) {
	store := newFakeFileStore()
	store.failOn = 2
	u := catalog.NewUploader(store)

	urls, err := u.Upload(context.Background(), files("a.jpg", "b.jpg", "c.jpg"), "electrodomesticos")

	var upErr *catalog.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "b.jpg", upErr.File)
	require.Len(t, upErr.Uploaded, 1)
	assert.True(t, strings.HasSuffix(upErr.Uploaded[0], "a.jpg"))
	// The partial result is also returned directly.
	assert.Equal(t, upErr.Uploaded, urls)
	// c.jpg was never attempted.
	assert.Len(t, store.keys, 1)
}

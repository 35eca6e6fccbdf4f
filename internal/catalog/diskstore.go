package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/electrohogar/catalogo/pkg/storage"
)

// DiskStore adapts a storage.Disk (local or S3) to the FileStore
// interface the manager consumes.
type DiskStore struct {
	disk storage.Disk
}

// NewDiskStore wraps disk as a FileStore.
func NewDiskStore(disk storage.Disk) *DiskStore {
	return &DiskStore{disk: disk}
}

func (s *DiskStore) Upload(_ context.Context, key string, content io.Reader) error {
	return s.disk.PutStream(key, content)
}

func (s *DiskStore) ResolveURL(key string) string {
	return s.disk.URL(key)
}

// Delete maps a previously resolved public URL back to its storage key
// and removes the object. URLs that do not belong to this disk are an
// error — callers treat photo deletion as best-effort anyway.
func (s *DiskStore) Delete(_ context.Context, url string) error {
	base := s.disk.URL("")
	if base == "" || !strings.HasPrefix(url, base) {
		return fmt.Errorf("storage: url %q is not served by this disk", url)
	}
	key := strings.TrimPrefix(strings.TrimPrefix(url, base), "/")
	return s.disk.Delete(key)
}

package catalog

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/electrohogar/catalogo/pkg/metrics"
)

// Uploader sequences photo uploads for one create or edit operation.
// Files go up one at a time — resulting URL order always matches input
// order and at most one outbound request is in flight.
type Uploader struct {
	files FileStore
	now   func() time.Time
}

// NewUploader returns an Uploader writing through fs.
func NewUploader(fs FileStore) *Uploader {
	return &Uploader{files: fs, now: time.Now}
}

// Upload stores every file under prefix and returns their public URLs
// in input order. On the first failure it stops and returns an
// *UploadError carrying the URLs gathered so far; already-uploaded
// objects are left in place (orphans are cheap, cleanup is manual).
func (u *Uploader) Upload(ctx context.Context, files []File, prefix string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	// One timestamp per batch; the index keeps keys unique even when the
	// same filename is submitted twice in one call.
	stamp := u.now().UnixMilli()

	urls := make([]string, 0, len(files))
	for i, f := range files {
		key := fmt.Sprintf("%s/%d-%d-%s", strings.TrimSuffix(prefix, "/"), stamp, i, safeName(f.Name))

		if err := u.files.Upload(ctx, key, f.Content); err != nil {
			metrics.UploadsTotal.WithLabelValues("error").Inc()
			return urls, &UploadError{File: f.Name, Uploaded: urls, Err: err}
		}

		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		urls = append(urls, u.files.ResolveURL(key))
	}

	return urls, nil
}

// safeName strips any path component and whitespace from an uploaded
// filename before it becomes part of a storage key.
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." {
		return "archivo"
	}
	return name
}

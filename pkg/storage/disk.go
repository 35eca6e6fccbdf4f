// Package storage provides the filesystem abstraction behind product
// photos. Two drivers are available:
//   - "local" — local filesystem, served back under /storage/ (default)
//   - "s3"    — S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
// Boot once at startup:
//
//	storage.Connect()
//	disk := storage.Use(config.StorageDefault())
package storage

import "io"

// Disk is the driver interface. Paths use forward slashes and are
// relative to the disk root.
type Disk interface {
	// Put writes content to path, creating parents as needed.
	Put(path string, content []byte) error

	// PutStream writes from r to path.
	PutStream(path string, r io.Reader) error

	// Get returns the full content of the file at path.
	Get(path string) ([]byte, error)

	// Exists reports whether a file exists at path.
	Exists(path string) bool

	// Delete removes a file.
	Delete(path string) error

	// URL returns the public URL for path.
	URL(path string) string
}

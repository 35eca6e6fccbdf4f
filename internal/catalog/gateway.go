// Package catalog owns the in-memory view of the appliance catalog and
// every mutation against the remote document store and file store.
//
// The two collaborators are injected as interfaces so tests substitute
// in-memory doubles; production wires the Mongo gateway and a storage
// disk (local or S3).
package catalog

import (
	"context"
	"io"

	"github.com/electrohogar/catalogo/app/models"
)

// Gateway is the remote document collection the catalog mirrors.
// Implementations return *TransportError for any remote failure.
type Gateway interface {
	// FetchAll returns every raw document in the collection.
	FetchAll(ctx context.Context) ([]map[string]any, error)

	// Create inserts doc, stamps the server-assigned "createdAt" into it,
	// and returns the new document id.
	Create(ctx context.Context, doc map[string]any) (string, error)

	// Update overwrites the record's fields per the patch; fields listed
	// in patch.Unset are removed from the document.
	Update(ctx context.Context, id string, patch models.Patch) error

	// Delete removes the document.
	Delete(ctx context.Context, id string) error
}

// FileStore is the remote binary store holding product photos.
type FileStore interface {
	// Upload stores content under key.
	Upload(ctx context.Context, key string, content io.Reader) error

	// ResolveURL returns the publicly fetchable URL for key.
	ResolveURL(key string) string

	// Delete removes the object a previously resolved URL points at.
	Delete(ctx context.Context, url string) error
}

// File is one pending photo to attach to a record.
type File struct {
	Name    string
	Content io.Reader
}

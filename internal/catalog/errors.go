package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrBusy is returned when a mutating call arrives while another one is
// still in flight. Mutations are never queued; the caller retries.
var ErrBusy = errors.New("catalog: another mutation is in flight")

// ErrNotFound is returned when the referenced record is not in memory.
var ErrNotFound = errors.New("catalog: record not found")

// TransportError wraps a remote store or file-store failure. It is
// surfaced verbatim — the manager never retries on its own.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LoadError means the full catalog fetch failed. The caller shows a
// recoverable empty state and decides whether to reload.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("catalog: load: %v", e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError means the caller-supplied draft is invalid. It is
// raised before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog: invalid %s: %s", e.Field, e.Message)
}

// UploadError reports the first failing file of a batch. Uploaded holds
// the URLs obtained before the failure so the caller can keep or discard
// the partial progress; the workflow itself cleans nothing up.
type UploadError struct {
	File     string
	Uploaded []string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("catalog: upload %s: %v (%d uploaded before failure)",
		e.File, e.Err, len(e.Uploaded))
}

func (e *UploadError) Unwrap() error { return e.Err }

// BatchReport summarises a multi-record delete. Each deletion is
// independent; there is no atomicity across the batch.
type BatchReport struct {
	Deleted []string         `json:"deleted"`
	Failed  map[string]error `json:"-"`
}

// FailedIDs returns the ids that could not be deleted, for callers that
// only need the list.
func (r BatchReport) FailedIDs() []string {
	out := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

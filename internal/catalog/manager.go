package catalog

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/electrohogar/catalogo/app/models"
	"github.com/electrohogar/catalogo/pkg/collection"
	"github.com/electrohogar/catalogo/pkg/logger"
	"github.com/electrohogar/catalogo/pkg/metrics"
)

// storagePrefix namespaces every uploaded photo key.
const storagePrefix = "electrodomesticos"

// EventType classifies a catalog change notification.
type EventType string

const (
	EventLoaded  EventType = "loaded"
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is pushed to observers after a mutation is confirmed by the
// remote store and applied to memory.
type Event struct {
	Type EventType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

// Observer receives catalog change events.
type Observer func(Event)

// Manager owns the authoritative in-memory catalog: the record set, the
// selection, and the active filter criteria. Every remote-backed
// mutation is confirm-then-mutate — memory changes only after the store
// acknowledged the write, so the view never shows state that was never
// persisted.
//
// The manager is the single logical writer. Overlapping mutating calls
// are rejected with ErrBusy rather than queued; read methods are always
// safe.
type Manager struct {
	gw       Gateway
	files    FileStore
	uploader *Uploader
	log      *slog.Logger

	inFlight atomic.Bool

	mu        sync.Mutex
	records   []models.Record
	selection map[string]struct{}
	criteria  Criteria
	sortKey   SortKey
	observers map[int]Observer
	nextObsID int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// New builds a Manager over the given collaborators. The catalog starts
// empty; call Load to populate it.
func New(gw Gateway, files FileStore, opts ...Option) *Manager {
	m := &Manager{
		gw:        gw,
		files:     files,
		uploader:  NewUploader(files),
		log:       logger.L,
		selection: make(map[string]struct{}),
		criteria:  Criteria{Category: models.CategoryAll},
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers an observer for catalog change events and returns
// a function that removes it again. Long-lived subscribers (the cache
// invalidator, the WebSocket hub) never call it; per-connection event
// streams must.
func (m *Manager) Subscribe(fn Observer) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(ev Event) {
	m.mu.Lock()
	obs := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		obs = append(obs, fn)
	}
	m.mu.Unlock()

	for _, fn := range obs {
		fn(ev)
	}
}

// acquire claims the single mutation slot.
func (m *Manager) acquire() error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (m *Manager) release() { m.inFlight.Store(false) }

// ── Loading ──────────────────────────────────────────────────────────────────

// Load replaces the in-memory catalog with the store's current
// contents. Selection does not survive a reload. On transport failure
// memory is left untouched and a *LoadError is returned; the manager
// never retries on its own.
func (m *Manager) Load(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	docs, err := m.gw.FetchAll(ctx)
	if err != nil {
		metrics.CatalogOps.WithLabelValues("load", "error").Inc()
		return &LoadError{Err: err}
	}

	records := make([]models.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, models.Normalize("", doc))
	}

	m.mu.Lock()
	m.records = records
	m.selection = make(map[string]struct{})
	m.mu.Unlock()

	metrics.CatalogOps.WithLabelValues("load", "ok").Inc()
	metrics.CatalogSize.Set(float64(len(records)))
	m.log.Info("catalog loaded", "records", len(records))
	m.notify(Event{Type: EventLoaded})
	return nil
}

// ── Read side ────────────────────────────────────────────────────────────────

// Records returns a copy of the full record set in store order.
func (m *Manager) Records() []models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Record, len(m.records))
	copy(out, m.records)
	return out
}

// View returns the filtered, sorted projection under the active
// criteria and sort key.
func (m *Manager) View() []models.Record {
	m.mu.Lock()
	records, criteria, key := m.records, m.criteria, m.sortKey
	m.mu.Unlock()
	return DeriveView(records, criteria, key)
}

// Get finds one record by id.
func (m *Manager) Get(id string) (models.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return collection.First(m.records, func(r models.Record) bool { return r.ID == id })
}

// Categories lists the distinct categories currently in the catalog.
func (m *Manager) Categories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Categories(m.records)
}

// SetCriteria replaces the active filter criteria.
func (m *Manager) SetCriteria(c Criteria) {
	m.mu.Lock()
	m.criteria = c
	m.mu.Unlock()
}

// Criteria returns the active filter criteria.
func (m *Manager) Criteria() Criteria {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.criteria
}

// SetSort replaces the active sort key.
func (m *Manager) SetSort(key SortKey) {
	m.mu.Lock()
	m.sortKey = key
	m.mu.Unlock()
}

// ── Selection ────────────────────────────────────────────────────────────────

// ToggleSelection flips the selection state of id.
func (m *Manager) ToggleSelection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.selection[id]; ok {
		delete(m.selection, id)
		return
	}
	m.selection[id] = struct{}{}
}

// ClearSelection empties the selection.
func (m *Manager) ClearSelection() {
	m.mu.Lock()
	m.selection = make(map[string]struct{})
	m.mu.Unlock()
}

// Selection returns the selected ids, sorted for determinism.
func (m *Manager) Selection() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.selection))
	for id := range m.selection {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ── Mutations ────────────────────────────────────────────────────────────────

func validateDraft(draft models.Record) error {
	if strings.TrimSpace(draft.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if draft.Price < 0 || math.IsNaN(draft.Price) || math.IsInf(draft.Price, 0) {
		return &ValidationError{Field: "price", Message: "must be a non-negative number"}
	}
	if draft.Stock < 0 {
		return &ValidationError{Field: "stock", Message: "must not be negative"}
	}
	return nil
}

// Create uploads the draft's photos, inserts the record, and appends
// the store's version to memory. Validation failures never reach the
// network. On upload or insert failure nothing is appended; photos
// uploaded before the failure stay in the store as orphans.
func (m *Manager) Create(ctx context.Context, draft models.Record, files []File) (models.Record, error) {
	if err := m.acquire(); err != nil {
		return models.Record{}, err
	}
	defer m.release()

	if err := validateDraft(draft); err != nil {
		return models.Record{}, err
	}
	if draft.Category == "" {
		draft.Category = models.CategoryNone
	}

	urls, err := m.uploader.Upload(ctx, files, storagePrefix)
	if err != nil {
		metrics.CatalogOps.WithLabelValues("create", "error").Inc()
		return models.Record{}, err
	}
	draft.Fotos = append(draft.Fotos, urls...)

	doc := models.CreatePayload(draft)
	id, err := m.gw.Create(ctx, doc)
	if err != nil {
		metrics.CatalogOps.WithLabelValues("create", "error").Inc()
		return models.Record{}, err
	}

	rec := models.Normalize(id, doc)

	m.mu.Lock()
	m.records = append(m.records, rec)
	size := len(m.records)
	m.mu.Unlock()

	metrics.CatalogOps.WithLabelValues("create", "ok").Inc()
	metrics.CatalogSize.Set(float64(size))
	m.log.Info("record created", "id", rec.ID, "name", rec.Name, "fotos", len(rec.Fotos))
	m.notify(Event{Type: EventCreated, ID: rec.ID})
	return rec, nil
}

// Update performs a full-record overwrite of id. Removed photo URLs are
// deleted from the file store best-effort (a dangling file never blocks
// the record write), new photos are uploaded, and the resulting photo
// list keeps relative order: surviving existing URLs first, then the
// new uploads. Memory is only touched after the store confirmed the
// update — a failed write leaves the catalog exactly as it was.
func (m *Manager) Update(ctx context.Context, id string, draft models.Record, newFiles []File, removedURLs []string) (models.Record, error) {
	if err := m.acquire(); err != nil {
		return models.Record{}, err
	}
	defer m.release()

	if err := validateDraft(draft); err != nil {
		return models.Record{}, err
	}

	existing, ok := m.Get(id)
	if !ok {
		return models.Record{}, ErrNotFound
	}

	removed := make(map[string]struct{}, len(removedURLs))
	for _, url := range removedURLs {
		removed[url] = struct{}{}
		if err := m.files.Delete(ctx, url); err != nil {
			m.log.Warn("photo delete failed, continuing", "id", id, "url", url, "error", err)
		}
	}

	urls, err := m.uploader.Upload(ctx, newFiles, storagePrefix)
	if err != nil {
		metrics.CatalogOps.WithLabelValues("update", "error").Inc()
		return models.Record{}, err
	}

	var fotos []string
	for _, url := range existing.Fotos {
		if _, gone := removed[url]; !gone {
			fotos = append(fotos, url)
		}
	}
	fotos = append(fotos, urls...)

	draft.ID = id
	draft.Fotos = fotos
	draft.CreatedAt = existing.CreatedAt
	if draft.Category == "" {
		draft.Category = existing.Category
	}

	if err := m.gw.Update(ctx, id, models.UpdatePayload(draft)); err != nil {
		metrics.CatalogOps.WithLabelValues("update", "error").Inc()
		return models.Record{}, err
	}

	m.mu.Lock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i] = draft
			break
		}
	}
	m.mu.Unlock()

	metrics.CatalogOps.WithLabelValues("update", "ok").Inc()
	m.log.Info("record updated", "id", id, "fotos", len(fotos))
	m.notify(Event{Type: EventUpdated, ID: id})
	return draft, nil
}

// Delete removes id from the store and then from memory. Its photos are
// deleted first, best-effort: failures are logged and ignored so an
// orphaned file never blocks the record deletion. If the store delete
// fails the record stays and the error is surfaced.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	return m.deleteOne(ctx, id)
}

// deleteOne is Delete without the in-flight guard, shared with
// DeleteSelected.
func (m *Manager) deleteOne(ctx context.Context, id string) error {
	rec, ok := m.Get(id)
	if !ok {
		return ErrNotFound
	}

	for _, url := range rec.Fotos {
		if err := m.files.Delete(ctx, url); err != nil {
			m.log.Warn("photo delete failed, continuing", "id", id, "url", url, "error", err)
		}
	}

	if err := m.gw.Delete(ctx, id); err != nil {
		metrics.CatalogOps.WithLabelValues("delete", "error").Inc()
		return err
	}

	m.mu.Lock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			break
		}
	}
	delete(m.selection, id)
	size := len(m.records)
	m.mu.Unlock()

	metrics.CatalogOps.WithLabelValues("delete", "ok").Inc()
	metrics.CatalogSize.Set(float64(size))
	m.log.Info("record deleted", "id", id)
	m.notify(Event{Type: EventDeleted, ID: id})
	return nil
}

// DeleteSelected deletes every selected record, one by one in sorted id
// order. Deletions are independent: ids that succeed are removed from
// the catalog and the selection, ids that fail stay in both, and the
// report lists each outcome.
func (m *Manager) DeleteSelected(ctx context.Context) (BatchReport, error) {
	if err := m.acquire(); err != nil {
		return BatchReport{}, err
	}
	defer m.release()

	report := BatchReport{Failed: make(map[string]error)}
	for _, id := range m.Selection() {
		if err := m.deleteOne(ctx, id); err != nil {
			report.Failed[id] = err
			continue
		}
		report.Deleted = append(report.Deleted, id)
	}

	if len(report.Failed) > 0 {
		m.log.Warn("batch delete finished with failures",
			"deleted", len(report.Deleted), "failed", len(report.Failed))
	}
	return report, nil
}

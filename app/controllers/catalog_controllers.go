package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/electrohogar/catalogo/app/models"
	"github.com/electrohogar/catalogo/internal/catalog"
	"github.com/electrohogar/catalogo/pkg/cache"
	"github.com/electrohogar/catalogo/pkg/logger"
	"github.com/electrohogar/catalogo/pkg/response"
	"github.com/electrohogar/catalogo/pkg/sse"
)

const (
	maxUploadBytes = 32 << 20
	listCacheTTL   = 30 * time.Second

	// ListCachePrefix namespaces every cached list response so a single
	// prefix invalidation covers all filter combinations.
	ListCachePrefix = "productos:"
)

type CatalogController struct {
	manager *catalog.Manager
}

func NewCatalogController(m *catalog.Manager) *CatalogController {
	return &CatalogController{manager: m}
}

// ─── Reads ────────────────────────────────────────────────────────────────────

func criteriaFromQuery(r *http.Request) (catalog.Criteria, catalog.SortKey) {
	q := r.URL.Query()
	crit := catalog.Criteria{
		Category:   q.Get("categoria"),
		Search:     q.Get("q"),
		DefectOnly: q.Get("solo_ocasion") == "true" || q.Get("solo_ocasion") == "1",
	}
	return crit, catalog.ParseSortKey(q.Get("orden"))
}

func listCacheKey(crit catalog.Criteria, key catalog.SortKey) string {
	return fmt.Sprintf("%s%s|%s|%t|%s", ListCachePrefix, crit.Category, crit.Search, crit.DefectOnly, key)
}

// List returns the derived view for the requested filters. Responses
// are cached briefly in Redis; any catalog mutation invalidates the
// whole prefix.
func (c *CatalogController) List(w http.ResponseWriter, r *http.Request) {
	crit, key := criteriaFromQuery(r)

	cacheKey := listCacheKey(crit, key)
	var cached []models.Record
	if cache.Get(cacheKey, &cached) {
		response.Success(w, cached)
		return
	}

	view := catalog.DeriveView(c.manager.Records(), crit, key)
	if err := cache.Set(cacheKey, view, listCacheTTL); err != nil {
		logger.WithCtx(r.Context()).Warn("cache list view", "error", err)
	}

	response.Success(w, view)
}

func (c *CatalogController) Categories(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, c.manager.Categories())
}

// ─── Mutations ────────────────────────────────────────────────────────────────

// draftFromForm reads the multipart fields into a record draft. Numeric
// fields that fail to parse are reported per field; the manager applies
// its own validation on top.
func draftFromForm(r *http.Request) (models.Record, map[string]string) {
	errs := map[string]string{}
	draft := models.Record{
		Name:     r.FormValue("name"),
		Category: r.FormValue("category"),
	}

	if v := r.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs["price"] = "must be a number"
		}
		draft.Price = price
	}
	if v := r.FormValue("stock"); v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil {
			errs["stock"] = "must be an integer"
		}
		draft.Stock = stock
	}
	if v := r.FormValue("hasDefect"); v == "true" || v == "1" {
		draft.HasDefect = true
	}
	draft.Medidas = models.Text(r.FormValue("medidas"))
	draft.Observaciones = models.Text(r.FormValue("observaciones"))

	if len(errs) > 0 {
		return draft, errs
	}
	return draft, nil
}

// photosFromForm opens every uploaded "fotos" part. The caller must run
// the returned cleanup once the manager call finishes.
func photosFromForm(r *http.Request) ([]catalog.File, func(), error) {
	if r.MultipartForm == nil || r.MultipartForm.File == nil {
		return nil, func() {}, nil
	}

	headers := r.MultipartForm.File["fotos"]
	files := make([]catalog.File, 0, len(headers))
	closers := make([]func() error, 0, len(headers))
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, f.Close)
		files = append(files, catalog.File{Name: h.Filename, Content: f})
	}
	return files, cleanup, nil
}

func (c *CatalogController) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	draft, errs := draftFromForm(r)
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	files, cleanup, err := photosFromForm(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "could not read uploaded files")
		return
	}
	defer cleanup()

	rec, err := c.manager.Create(r.Context(), draft, files)
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}

	response.Created(w, rec)
}

func (c *CatalogController) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	draft, errs := draftFromForm(r)
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	files, cleanup, err := photosFromForm(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "could not read uploaded files")
		return
	}
	defer cleanup()

	removed := r.MultipartForm.Value["fotosEliminadas"]

	rec, err := c.manager.Update(r.Context(), id, draft, files, removed)
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}

	response.Success(w, rec)
}

func (c *CatalogController) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.manager.Delete(r.Context(), id); err != nil {
		writeCatalogError(w, r, err)
		return
	}

	response.Success(w, map[string]string{"id": id})
}

// Reload refetches the whole collection from the store, replacing the
// in-memory catalog.
func (c *CatalogController) Reload(w http.ResponseWriter, r *http.Request) {
	if err := c.manager.Load(r.Context()); err != nil {
		writeCatalogError(w, r, err)
		return
	}

	response.Success(w, map[string]int{"total": len(c.manager.Records())})
}

// ─── Selection ────────────────────────────────────────────────────────────────

func (c *CatalogController) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := c.manager.Get(id); !ok {
		response.NotFound(w)
		return
	}

	c.manager.ToggleSelection(id)
	response.Success(w, c.manager.Selection())
}

func (c *CatalogController) ClearSelection(w http.ResponseWriter, _ *http.Request) {
	c.manager.ClearSelection()
	response.Success(w, []string{})
}

// DeleteSelected removes every selected record one by one and reports
// the outcome per id. A partial failure is still a 200: the report
// tells the client which ids survived.
func (c *CatalogController) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	report, err := c.manager.DeleteSelected(r.Context())
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}

	failed := make(map[string]string, len(report.Failed))
	for id, ferr := range report.Failed {
		failed[id] = ferr.Error()
	}

	response.Success(w, map[string]any{
		"deleted": report.Deleted,
		"failed":  failed,
	})
}

// ─── Event stream ─────────────────────────────────────────────────────────────

// Events streams catalog change events over SSE. It is the fallback
// feed for clients that cannot hold a WebSocket open.
func (c *CatalogController) Events(w http.ResponseWriter, r *http.Request) {
	stream := sse.New(w, r)
	if stream == nil {
		return
	}

	events := make(chan catalog.Event, 16)
	unsubscribe := c.manager.Subscribe(func(ev catalog.Event) {
		select {
		case events <- ev:
		default:
			// Slow consumer, drop. The next reload resyncs it.
		}
	})
	defer unsubscribe()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := stream.Send(string(ev.Type), ev); err != nil {
				return
			}
			if stream.IsClosed() {
				return
			}
		case <-heartbeat.C:
			stream.Comment("keepalive")
			if stream.IsClosed() {
				return
			}
		}
	}
}

// ─── Error mapping ────────────────────────────────────────────────────────────

func writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *catalog.ValidationError
	var upErr *catalog.UploadError
	var loadErr *catalog.LoadError
	var trErr *catalog.TransportError

	switch {
	case errors.As(err, &vErr):
		response.ValidationError(w, map[string]string{vErr.Field: vErr.Message})
	case errors.Is(err, catalog.ErrBusy):
		response.Conflict(w, "another operation is in progress")
	case errors.Is(err, catalog.ErrNotFound):
		response.NotFound(w)
	case errors.As(err, &upErr):
		logger.WithCtx(r.Context()).Error("photo upload failed",
			"file", upErr.File, "uploaded", len(upErr.Uploaded), "error", err)
		response.Error(w, http.StatusBadGateway,
			fmt.Sprintf("upload failed at %q after %d file(s)", upErr.File, len(upErr.Uploaded)))
	case errors.As(err, &loadErr), errors.As(err, &trErr):
		logger.WithCtx(r.Context()).Error("store operation failed", "error", err)
		response.Error(w, http.StatusBadGateway, "catalog store unavailable")
	default:
		logger.WithCtx(r.Context()).Error("catalog operation failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "internal error")
	}
}

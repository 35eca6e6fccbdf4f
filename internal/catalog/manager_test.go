package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electrohogar/catalogo/app/models"
	"github.com/electrohogar/catalogo/internal/catalog"
)

// fakeGateway is an in-memory Gateway. Errors are injected per
// operation; Create stamps createdAt the way the real gateway does.
type fakeGateway struct {
	mu      sync.Mutex
	docs    []map[string]any
	nextID  int
	created []map[string]any

	fetchErr  error
	createErr error
	updateErr error
	deleteErr map[string]error

	updates map[string]models.Patch

	// blockCreate, when set, makes Create wait until released; entered
	// receives once per blocked call so tests can synchronize.
	blockCreate chan struct{}
	entered     chan struct{}
}

func newFakeGateway(docs ...map[string]any) *fakeGateway {
	return &fakeGateway{
		docs:      docs,
		deleteErr: make(map[string]error),
		updates:   make(map[string]models.Patch),
	}
}

func (g *fakeGateway) FetchAll(context.Context) ([]map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.docs, nil
}

func (g *fakeGateway) Create(_ context.Context, doc map[string]any) (string, error) {
	if g.blockCreate != nil {
		if g.entered != nil {
			g.entered <- struct{}{}
		}
		<-g.blockCreate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	doc["createdAt"] = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	g.nextID++
	g.created = append(g.created, doc)
	return fmt.Sprintf("gen%d", g.nextID), nil
}

func (g *fakeGateway) Update(_ context.Context, id string, patch models.Patch) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return g.updateErr
	}
	g.updates[id] = patch
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deleteErr[id]
}

func doc(id, name, category string, fotos ...string) map[string]any {
	return map[string]any{
		"_id":      id,
		"name":     name,
		"category": category,
		"price":    100.0,
		"stock":    2,
		"fotos":    fotos,
	}
}

func newManager(t *testing.T, gw *fakeGateway, store *fakeFileStore) *catalog.Manager {
	t.Helper()
	m := catalog.New(gw, store)
	require.NoError(t, m.Load(context.Background()))
	return m
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoadReplacesRecordsAndClearsSelection(t *testing.T) {
	gw := newFakeGateway(doc("a", "Lavadora", "Lavadora"), doc("b", "Horno", "Horno"))
	m := newManager(t, gw, newFakeFileStore())

	m.ToggleSelection("a")
	require.Equal(t, []string{"a"}, m.Selection())

	require.NoError(t, m.Load(context.Background()))
	assert.Len(t, m.Records(), 2)
	assert.Empty(t, m.Selection(), "selection must not survive a reload")
}

func TestLoadFailureLeavesMemoryUntouched(t *testing.T) {
	gw := newFakeGateway(doc("a", "Lavadora", "Lavadora"))
	m := newManager(t, gw, newFakeFileStore())

	gw.fetchErr = errors.New("connection reset")
	err := m.Load(context.Background())

	var loadErr *catalog.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Len(t, m.Records(), 1, "failed reload must keep the previous records")
}

// ── Create ───────────────────────────────────────────────────────────────────

func TestCreateValidationNeverReachesNetwork(t *testing.T) {
	gw := newFakeGateway()
	store := newFakeFileStore()
	m := newManager(t, gw, store)

	_, err := m.Create(context.Background(), models.Record{Name: "   "}, files("f.jpg"))

	var vErr *catalog.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
	assert.Empty(t, gw.created, "invalid draft must not hit the store")
	assert.Empty(t, store.keys, "invalid draft must not upload photos")
}

func TestCreateRejectsNonFinitePrices(t *testing.T) {
	gw := newFakeGateway()
	store := newFakeFileStore()
	m := newManager(t, gw, store)

	for _, bad := range []float64{math.NaN(), math.Inf(1), -1} {
		_, err := m.Create(context.Background(), models.Record{Name: "Roto", Price: bad}, nil)

		var vErr *catalog.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "price", vErr.Field)
	}

	assert.Empty(t, gw.created)
	// The catalog stays serializable for list responses.
	_, err := json.Marshal(m.Records())
	require.NoError(t, err)
}

func TestCreateAppendsStoreVersion(t *testing.T) {
	gw := newFakeGateway()
	m := newManager(t, gw, newFakeFileStore())

	var events []catalog.Event
	m.Subscribe(func(ev catalog.Event) { events = append(events, ev) })

	rec, err := m.Create(context.Background(), models.Record{
		Name:  "Micro LG",
		Price: 89.9,
		Stock: 4,
	}, files("frente.jpg", "lateral.jpg"))
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.CategoryNone, rec.Category, "blank category falls back to the default")
	assert.False(t, rec.CreatedAt.IsZero(), "store-assigned timestamp must be visible immediately")
	require.Len(t, rec.Fotos, 2)
	assert.True(t, strings.HasSuffix(rec.Fotos[0], "frente.jpg"))

	got, ok := m.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	require.Len(t, events, 1)
	assert.Equal(t, catalog.EventCreated, events[0].Type)
	assert.Equal(t, rec.ID, events[0].ID)
}

func TestCreateStoreFailureAppendsNothing(t *testing.T) {
	gw := newFakeGateway()
	gw.createErr = errors.New("insert refused")
	m := newManager(t, gw, newFakeFileStore())

	_, err := m.Create(context.Background(), models.Record{Name: "Horno"}, nil)
	require.Error(t, err)
	assert.Empty(t, m.Records())
}

func TestCreateUploadFailureAppendsNothing(t *testing.T) {
	gw := newFakeGateway()
	store := newFakeFileStore()
	store.failOn = 1
	m := newManager(t, gw, store)

	_, err := m.Create(context.Background(), models.Record{Name: "Horno"}, files("a.jpg"))

	var upErr *catalog.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Empty(t, m.Records())
	assert.Empty(t, gw.created, "insert must not run after a failed upload")
}

// ── Update ───────────────────────────────────────────────────────────────────

func TestUpdateUnknownID(t *testing.T) {
	m := newManager(t, newFakeGateway(), newFakeFileStore())
	_, err := m.Update(context.Background(), "nope", models.Record{Name: "x"}, nil, nil)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestUpdateMergesPhotoLists(t *testing.T) {
	gw := newFakeGateway(doc("a", "Tele", "Televisor", "https://files.test/old1.jpg", "https://files.test/old2.jpg"))
	store := newFakeFileStore()
	m := newManager(t, gw, store)

	rec, err := m.Update(context.Background(), "a",
		models.Record{Name: "Tele 4K", Price: 500},
		files("nueva.jpg"),
		[]string{"https://files.test/old1.jpg"})
	require.NoError(t, err)

	// Surviving photos keep their position, new uploads go last.
	require.Len(t, rec.Fotos, 2)
	assert.Equal(t, "https://files.test/old2.jpg", rec.Fotos[0])
	assert.True(t, strings.HasSuffix(rec.Fotos[1], "nueva.jpg"))

	assert.Equal(t, []string{"https://files.test/old1.jpg"}, store.deleted)
	assert.Equal(t, "Televisor", rec.Category, "blank category falls back to the existing one")

	patch, ok := gw.updates["a"]
	require.True(t, ok)
	assert.Equal(t, rec.Fotos, patch.Set["fotos"])
}

func TestUpdatePhotoDeleteFailureDoesNotBlock(t *testing.T) {
	gw := newFakeGateway(doc("a", "Tele", "Televisor", "https://files.test/old.jpg"))
	store := newFakeFileStore()
	store.delErr = errors.New("object locked")
	m := newManager(t, gw, store)

	rec, err := m.Update(context.Background(), "a",
		models.Record{Name: "Tele"}, nil, []string{"https://files.test/old.jpg"})
	require.NoError(t, err)
	assert.Empty(t, rec.Fotos, "removed url leaves the record even when the file delete fails")
}

func TestUpdateStoreFailureLeavesMemoryUnchanged(t *testing.T) {
	gw := newFakeGateway(doc("a", "Tele", "Televisor"))
	gw.updateErr = errors.New("write refused")
	m := newManager(t, gw, newFakeFileStore())

	before, _ := m.Get("a")
	_, err := m.Update(context.Background(), "a", models.Record{Name: "Nueva"}, nil, nil)
	require.Error(t, err)

	after, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	created := time.Date(2023, 2, 3, 0, 0, 0, 0, time.UTC)
	d := doc("a", "Tele", "Televisor")
	d["createdAt"] = created
	m := newManager(t, newFakeGateway(d), newFakeFileStore())

	rec, err := m.Update(context.Background(), "a", models.Record{Name: "Tele"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, created, rec.CreatedAt)
}

// ── Delete ───────────────────────────────────────────────────────────────────

func TestDeleteRemovesRecordAndPhotos(t *testing.T) {
	gw := newFakeGateway(doc("a", "Tele", "Televisor", "https://files.test/t.jpg"))
	store := newFakeFileStore()
	m := newManager(t, gw, store)
	m.ToggleSelection("a")

	require.NoError(t, m.Delete(context.Background(), "a"))

	_, ok := m.Get("a")
	assert.False(t, ok)
	assert.Empty(t, m.Selection())
	assert.Equal(t, []string{"https://files.test/t.jpg"}, store.deleted)
}

func TestDeleteStoreFailureKeepsRecord(t *testing.T) {
	gw := newFakeGateway(doc("a", "Tele", "Televisor"))
	gw.deleteErr["a"] = errors.New("delete refused")
	m := newManager(t, gw, newFakeFileStore())

	require.Error(t, m.Delete(context.Background(), "a"))
	_, ok := m.Get("a")
	assert.True(t, ok)
}

func TestDeleteUnknownID(t *testing.T) {
	m := newManager(t, newFakeGateway(), newFakeFileStore())
	assert.ErrorIs(t, m.Delete(context.Background(), "ghost"), catalog.ErrNotFound)
}

// ── Batch delete ─────────────────────────────────────────────────────────────

func TestDeleteSelectedReportsMixedOutcome(t *testing.T) {
	gw := newFakeGateway(
		doc("a", "Uno", "Horno"),
		doc("b", "Dos", "Horno"),
		doc("c", "Tres", "Horno"),
	)
	gw.deleteErr["b"] = errors.New("delete refused")
	m := newManager(t, gw, newFakeFileStore())

	m.ToggleSelection("a")
	m.ToggleSelection("b")
	m.ToggleSelection("c")

	report, err := m.DeleteSelected(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, report.Deleted)
	assert.Equal(t, []string{"b"}, report.FailedIDs())

	// Failed ids stay in the catalog and in the selection.
	_, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, m.Selection())
	assert.Len(t, m.Records(), 1)
}

func TestDeleteSelectedEmptySelection(t *testing.T) {
	m := newManager(t, newFakeGateway(doc("a", "Uno", "Horno")), newFakeFileStore())
	report, err := m.DeleteSelected(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, report.Failed)
	assert.Len(t, m.Records(), 1)
}

// ── Concurrency guard ────────────────────────────────────────────────────────

func TestOverlappingMutationsAreRejected(t *testing.T) {
	gw := newFakeGateway()
	gw.blockCreate = make(chan struct{})
	gw.entered = make(chan struct{}, 1)
	m := newManager(t, gw, newFakeFileStore())

	done := make(chan error, 1)
	go func() {
		_, err := m.Create(context.Background(), models.Record{Name: "Lenta"}, nil)
		done <- err
	}()

	// Wait until the first create is parked inside the gateway call.
	<-gw.entered

	_, err := m.Create(context.Background(), models.Record{Name: "Rápida"}, nil)
	assert.ErrorIs(t, err, catalog.ErrBusy)
	assert.ErrorIs(t, m.Delete(context.Background(), "x"), catalog.ErrBusy)
	_, err = m.DeleteSelected(context.Background())
	assert.ErrorIs(t, err, catalog.ErrBusy)
	assert.ErrorIs(t, m.Load(context.Background()), catalog.ErrBusy)

	close(gw.blockCreate)
	require.NoError(t, <-done)

	// Slot is free again.
	_, err = m.Create(context.Background(), models.Record{Name: "Siguiente"}, nil)
	require.NoError(t, err)
}

func TestReadsWorkWhileMutationInFlight(t *testing.T) {
	gw := newFakeGateway(doc("a", "Tele", "Televisor"))
	gw.blockCreate = make(chan struct{})
	m := newManager(t, gw, newFakeFileStore())

	done := make(chan error, 1)
	go func() {
		_, err := m.Create(context.Background(), models.Record{Name: "Lenta"}, nil)
		done <- err
	}()

	// Reads never block on the mutation slot.
	assert.Len(t, m.Records(), 1)
	_, ok := m.Get("a")
	assert.True(t, ok)
	assert.NotEmpty(t, m.Categories())
	m.SetCriteria(catalog.Criteria{Category: "Televisor"})
	assert.Len(t, m.View(), 1)

	close(gw.blockCreate)
	require.NoError(t, <-done)
}

// ── Selection and view state ─────────────────────────────────────────────────

func TestSelectionToggleAndClear(t *testing.T) {
	m := newManager(t, newFakeGateway(doc("a", "Uno", "Horno"), doc("b", "Dos", "Horno")), newFakeFileStore())

	m.ToggleSelection("b")
	m.ToggleSelection("a")
	assert.Equal(t, []string{"a", "b"}, m.Selection(), "selection is reported sorted")

	m.ToggleSelection("a")
	assert.Equal(t, []string{"b"}, m.Selection(), "second toggle deselects")

	m.ClearSelection()
	assert.Empty(t, m.Selection())
}

func TestViewFollowsCriteriaAndSort(t *testing.T) {
	gw := newFakeGateway(
		doc("a", "Lavadora Cara", "Lavadora"),
		doc("b", "Horno", "Horno"),
		doc("c", "Lavadora Barata", "Lavadora"),
	)
	m := newManager(t, gw, newFakeFileStore())

	m.SetCriteria(catalog.Criteria{Category: "Lavadora"})
	m.SetSort(catalog.SortPriceAsc)

	view := m.View()
	require.Len(t, view, 2)
	for _, r := range view {
		assert.Equal(t, "Lavadora", r.Category)
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	m := newManager(t, newFakeGateway(), newFakeFileStore())

	var count int
	unsubscribe := m.Subscribe(func(catalog.Event) { count++ })

	_, err := m.Create(context.Background(), models.Record{Name: "Uno"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	unsubscribe()
	_, err = m.Create(context.Background(), models.Record{Name: "Dos"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "no events after unsubscribe")
}

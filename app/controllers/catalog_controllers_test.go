package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electrohogar/catalogo/app/models"
	"github.com/electrohogar/catalogo/app/routes"
	"github.com/electrohogar/catalogo/config"
	"github.com/electrohogar/catalogo/internal/catalog"
	"github.com/electrohogar/catalogo/pkg/auth"
	"github.com/electrohogar/catalogo/pkg/router"
	"github.com/electrohogar/catalogo/pkg/ws"
)

// ── Test doubles ─────────────────────────────────────────────────────────────

type stubGateway struct {
	docs      []map[string]any
	nextID    int
	updateErr error
	deleteErr error
}

func (g *stubGateway) FetchAll(context.Context) ([]map[string]any, error) { return g.docs, nil }

func (g *stubGateway) Create(_ context.Context, doc map[string]any) (string, error) {
	g.nextID++
	return fmt.Sprintf("id%d", g.nextID), nil
}

func (g *stubGateway) Update(context.Context, string, models.Patch) error { return g.updateErr }
func (g *stubGateway) Delete(context.Context, string) error               { return g.deleteErr }

type stubFiles struct{ uploads []string }

func (s *stubFiles) Upload(_ context.Context, key string, _ io.Reader) error {
	s.uploads = append(s.uploads, key)
	return nil
}
func (s *stubFiles) ResolveURL(key string) string      { return "https://files.test/" + key }
func (s *stubFiles) Delete(context.Context, string) error { return nil }

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func newTestServer(t *testing.T, gw *stubGateway) (*httptest.Server, *catalog.Manager) {
	t.Helper()
	require.NoError(t, config.Load())

	m := catalog.New(gw, &stubFiles{})
	require.NoError(t, m.Load(context.Background()))

	r := router.New()
	routes.RegisterAPI(r, m, ws.NewHub())

	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	return srv, m
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken("admin@electrohogar.local")
	require.NoError(t, err)
	return token
}

func do(t *testing.T, method, url, token string, body io.Reader, contentType string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func productForm(t *testing.T, fields map[string]string, fotos ...string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range fotos {
		part, err := w.CreateFormFile("fotos", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// ── Auth ─────────────────────────────────────────────────────────────────────

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/productos", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	hash, err := auth.HashPassword("secreto123")
	require.NoError(t, err)
	config.Set("ADMIN_EMAIL", "admin@electrohogar.local")
	config.Set("ADMIN_PASSWORD", hash)

	body := `{"email":"admin@electrohogar.local","password":"secreto123"}`
	resp, env := do(t, http.MethodPost, srv.URL+"/api/login", "", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data["token"])

	// The issued token opens protected routes.
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/productos", data["token"], nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Wrong password is rejected.
	body = `{"email":"admin@electrohogar.local","password":"mal"}`
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/login", "", strings.NewReader(body), "application/json")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ── Reads ────────────────────────────────────────────────────────────────────

func TestListAppliesQueryFilters(t *testing.T) {
	gw := &stubGateway{docs: []map[string]any{
		{"_id": "a", "name": "Lavadora Bosch", "category": "Lavadora", "price": 400.0, "stock": 1},
		{"_id": "b", "name": "Horno Teka", "category": "Horno", "price": 250.0, "stock": 0, "hasDefect": true},
	}}
	srv, _ := newTestServer(t, gw)
	token := adminToken(t)

	resp, env := do(t, http.MethodGet, srv.URL+"/api/productos?categoria=Lavadora", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recs []models.Record
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ID)

	resp, env = do(t, http.MethodGet, srv.URL+"/api/productos?solo_ocasion=true", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].ID)
}

func TestCategoriesEndpoint(t *testing.T) {
	gw := &stubGateway{docs: []map[string]any{
		{"_id": "a", "name": "x", "category": "Lavadora"},
		{"_id": "b", "name": "y", "category": "Horno"},
	}}
	srv, _ := newTestServer(t, gw)

	resp, env := do(t, http.MethodGet, srv.URL+"/api/categorias", adminToken(t), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cats []string
	require.NoError(t, json.Unmarshal(env.Data, &cats))
	assert.Equal(t, []string{models.CategoryAll, "Lavadora", "Horno"}, cats)
}

// ── Mutations ────────────────────────────────────────────────────────────────

func TestCreateProduct(t *testing.T) {
	srv, m := newTestServer(t, &stubGateway{})

	body, ct := productForm(t, map[string]string{
		"name":     "Micro LG",
		"price":    "89.90",
		"category": "Microondas",
		"stock":    "4",
		"medidas":  "48x39x28",
	}, "frente.jpg")

	resp, env := do(t, http.MethodPost, srv.URL+"/api/productos", adminToken(t), body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec models.Record
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "Micro LG", rec.Name)
	assert.Equal(t, 89.90, rec.Price)
	require.Len(t, rec.Fotos, 1)

	_, ok := m.Get(rec.ID)
	assert.True(t, ok, "created record must land in the in-memory catalog")
}

func TestCreateRejectsBadNumericFields(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	body, ct := productForm(t, map[string]string{"name": "x", "price": "gratis"})
	resp, env := do(t, http.MethodPost, srv.URL+"/api/productos", adminToken(t), body, ct)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, env.Errors, "price")
}

func TestCreateRejectsEmptyName(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	body, ct := productForm(t, map[string]string{"name": "   ", "price": "10"})
	resp, env := do(t, http.MethodPost, srv.URL+"/api/productos", adminToken(t), body, ct)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, env.Errors, "name")
}

func TestUpdateUnknownProductIs404(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	body, ct := productForm(t, map[string]string{"name": "x", "price": "10"})
	resp, _ := do(t, http.MethodPut, srv.URL+"/api/productos/ghost", adminToken(t), body, ct)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteProduct(t *testing.T) {
	gw := &stubGateway{docs: []map[string]any{{"_id": "a", "name": "x", "category": "Horno"}}}
	srv, m := newTestServer(t, gw)

	resp, _ := do(t, http.MethodDelete, srv.URL+"/api/productos/a", adminToken(t), nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, ok := m.Get("a")
	assert.False(t, ok)
}

func TestDeleteStoreFailureIs502(t *testing.T) {
	gw := &stubGateway{
		docs:      []map[string]any{{"_id": "a", "name": "x", "category": "Horno"}},
		deleteErr: &catalog.TransportError{Op: "delete", Err: errors.New("down")},
	}
	srv, _ := newTestServer(t, gw)

	resp, _ := do(t, http.MethodDelete, srv.URL+"/api/productos/a", adminToken(t), nil, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

// ── Selection ────────────────────────────────────────────────────────────────

func TestSelectionFlow(t *testing.T) {
	gw := &stubGateway{docs: []map[string]any{
		{"_id": "a", "name": "x", "category": "Horno"},
		{"_id": "b", "name": "y", "category": "Horno"},
	}}
	srv, m := newTestServer(t, gw)
	token := adminToken(t)

	resp, env := do(t, http.MethodPost, srv.URL+"/api/seleccion/a", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sel []string
	require.NoError(t, json.Unmarshal(env.Data, &sel))
	assert.Equal(t, []string{"a"}, sel)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/seleccion/ghost", token, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/seleccion", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, m.Selection())
}

func TestDeleteSelectedReturnsReport(t *testing.T) {
	gw := &stubGateway{docs: []map[string]any{
		{"_id": "a", "name": "x", "category": "Horno"},
		{"_id": "b", "name": "y", "category": "Horno"},
	}}
	srv, m := newTestServer(t, gw)
	token := adminToken(t)

	m.ToggleSelection("a")
	m.ToggleSelection("b")

	resp, env := do(t, http.MethodDelete, srv.URL+"/api/productos", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Deleted []string          `json:"deleted"`
		Failed  map[string]string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.ElementsMatch(t, []string{"a", "b"}, report.Deleted)
	assert.Empty(t, report.Failed)
	assert.Empty(t, m.Records())
}

// ── Reload ───────────────────────────────────────────────────────────────────

func TestReloadRefreshesCatalog(t *testing.T) {
	gw := &stubGateway{}
	srv, m := newTestServer(t, gw)

	gw.docs = []map[string]any{{"_id": "n", "name": "Nuevo", "category": "Horno"}}
	resp, env := do(t, http.MethodPost, srv.URL+"/api/productos/recargar", adminToken(t), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data map[string]int
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1, data["total"])
	assert.Len(t, m.Records(), 1)
}

// ── GraphQL ──────────────────────────────────────────────────────────────────

func TestGraphQLProductosQuery(t *testing.T) {
	gw := &stubGateway{docs: []map[string]any{
		{"_id": "a", "name": "Lavadora Bosch", "category": "Lavadora", "price": 400.0, "stock": 2},
		{"_id": "b", "name": "Horno Teka", "category": "Horno", "price": 250.0, "stock": 0},
	}}
	srv, _ := newTestServer(t, gw)

	query := `{"query":"{ productos(category: \"Lavadora\") { id name price available } }"}`
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/graphql", strings.NewReader(query))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Productos []struct {
				ID        string  `json:"id"`
				Name      string  `json:"name"`
				Price     float64 `json:"price"`
				Available bool    `json:"available"`
			} `json:"productos"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Empty(t, result.Errors)
	require.Len(t, result.Data.Productos, 1)
	assert.Equal(t, "a", result.Data.Productos[0].ID)
	assert.True(t, result.Data.Productos[0].Available)
}

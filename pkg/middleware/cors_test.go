package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electrohogar/catalogo/config"
	"github.com/electrohogar/catalogo/pkg/middleware"
)

func corsHandler(opts middleware.CORSOptions) http.Handler {
	return middleware.CORS(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSOriginsComeFromConfig(t *testing.T) {
	require.NoError(t, config.Load())
	config.Set("CORS_ORIGINS", "https://admin.example, https://staging.example")
	t.Cleanup(func() { config.Set("CORS_ORIGINS", "*") })

	opts := middleware.DefaultCORSOptions()
	assert.Equal(t, []string{"https://admin.example", "https://staging.example"}, opts.AllowedOrigins)

	h := corsHandler(opts)

	req := httptest.NewRequest(http.MethodGet, "/api/productos", nil)
	req.Header.Set("Origin", "https://admin.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://admin.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/productos", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Values("Vary"), "Origin")
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	h := corsHandler(middleware.CORSOptions{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         300,
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/productos", nil)
	req.Header.Set("Origin", "https://admin.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "300", rr.Header().Get("Access-Control-Max-Age"))
}

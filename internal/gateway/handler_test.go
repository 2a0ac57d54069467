package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
)

func newTestMux(storefrontURL, inventoryURL string, client *http.Client) *http.ServeMux {
	h := NewHandler(
		NewServiceProxy(storefrontURL, client),
		NewServiceProxy(inventoryURL, client),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	mux := http.NewServeMux()
	Routes(mux, h, func(hf http.HandlerFunc) http.HandlerFunc { return hf })
	return mux
}

func TestHandler_Storefront(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"error":{"kind":"EmptyCart","message":"cart is empty"}}`))
	}))
	defer upstream.Close()

	mux := newTestMux(upstream.URL, "http://unused", upstream.Client())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":{"kind":"EmptyCart","message":"cart is empty"}}`, rec.Body.String())
}

func TestHandler_Routing(t *testing.T) {
	var (
		mu   sync.Mutex
		last string
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.Method + " " + r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	mux := newTestMux(upstream.URL, upstream.URL, upstream.Client())

	tests := []struct {
		method, path string
		want         string
	}{
		{http.MethodGet, "/cart", "GET /cart"},
		{http.MethodPost, "/cart/items", "POST /cart/items"},
		{http.MethodPatch, "/cart/items/item-1", "PATCH /cart/items/item-1"},
		{http.MethodDelete, "/cart", "DELETE /cart"},
		{http.MethodGet, "/orders/latest", "GET /orders/latest"},
		{http.MethodGet, "/inventory/VAR-A", "GET /stock/VAR-A"},
		{http.MethodGet, "/inventory", "GET /stock"},
		{http.MethodGet, "/inventory/VAR-A/availability", "GET /stock/VAR-A/availability"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, tt.want, last)
		})
	}
}

func TestHandler_BlocksInternalRoutes(t *testing.T) {
	var called atomic.Bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer upstream.Close()

	mux := newTestMux(upstream.URL, upstream.URL, upstream.Client())

	for _, path := range []string{"/orders/abc/status", "/inventory/VAR-A/restock"} {
		rec := httptest.NewRecorder()
		method := http.MethodPatch
		if path == "/inventory/VAR-A/restock" {
			method = http.MethodPost
		}
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	assert.False(t, called.Load())
}

func TestHandler_UpstreamDown(t *testing.T) {
	mux := newTestMux("http://127.0.0.1:1", "http://127.0.0.1:1", http.DefaultClient)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var env api.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, domain.KindInternal, env.Error.Kind)
}

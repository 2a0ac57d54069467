package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/orders"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func newTestMux(pinger Pinger) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	Routes(mux, pinger, identity.NewJWTResolver("secret"), "internal-secret", cart.NewHandler(nil, logger), orders.NewHandler(nil, logger), logger)
	return mux
}

func TestRoutes_RequireIdentity(t *testing.T) {
	mux := newTestMux(stubPinger{})

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/cart"},
		{http.MethodPost, "/cart/items"},
		{http.MethodPatch, "/cart/items/abc"},
		{http.MethodDelete, "/cart/items/abc"},
		{http.MethodDelete, "/cart"},
		{http.MethodPost, "/orders"},
		{http.MethodGet, "/orders"},
		{http.MethodGet, "/orders/latest"},
		{http.MethodGet, "/orders/abc"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			req.Header.Set("Authorization", "Bearer not-a-token")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var env api.Envelope
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, domain.KindUnauthorized, env.Error.Kind)
		})
	}
}

func TestRoutes_StatusNeedsServiceToken(t *testing.T) {
	mux := newTestMux(stubPinger{})

	for _, token := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodPatch, "/orders/abc/status", strings.NewReader(`{"status":"CONFIRMED"}`))
		if token != "" {
			req.Header.Set(identity.ServiceTokenHeader, token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
	}
}

func TestRoutes_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(stubPinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newTestMux(stubPinger{err: errors.New("connection refused")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

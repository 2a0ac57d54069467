package identity

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/api"
)

func TestJWTResolver(t *testing.T) {
	resolver := NewJWTResolver("test-secret")

	t.Run("accepts a valid token", func(t *testing.T) {
		token, err := resolver.IssueToken("user-1", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		userID, err := resolver.ResolveUser(req)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
	})

	t.Run("rejects missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		_, err := resolver.ResolveUser(req)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		token, err := NewJWTResolver("other").IssueToken("user-1", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, err = resolver.ResolveUser(req)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		token, err := resolver.IssueToken("user-1", -time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, err = resolver.ResolveUser(req)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestRequire(t *testing.T) {
	resolver := NewJWTResolver("test-secret")
	resp := api.NewResponder(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var seen string
	handler := Require(resolver, resp, func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("fails closed without a user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"Unauthorized"`)
		assert.Empty(t, seen)
	})

	t.Run("passes the user downstream", func(t *testing.T) {
		token, err := resolver.IssueToken("user-7", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "user-7", seen)
	})
}

func TestRequireServiceToken(t *testing.T) {
	resp := api.NewResponder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	for _, tc := range []struct {
		name       string
		configured string
		sent       string
		want       int
	}{
		{"matching token", "s3cret", "s3cret", http.StatusNoContent},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong token", "s3cret", "guess", http.StatusUnauthorized},
		{"nothing configured rejects everything", "", "", http.StatusUnauthorized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/orders/abc/status", nil)
			if tc.sent != "" {
				req.Header.Set(ServiceTokenHeader, tc.sent)
			}
			rec := httptest.NewRecorder()
			RequireServiceToken(tc.configured, resp, ok)(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

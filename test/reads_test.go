//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/inventory"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *api.ErrorBody  `json:"error"`
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestOrderReads(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	db := OpenDB(t, SetupPostgres(ctx, t))
	h := newHarness(t, db)

	const userID = "user-reads"
	c := h.client(t, userID)
	token, err := h.jwt.IssueToken(userID, time.Hour)
	require.NoError(t, err)

	var placed []string
	for _, variationID := range []string{"VAR-TEE-M-BLK", "VAR-HOODIE-M-GRY"} {
		_, err := c.AddItem(ctx, variationID, 1, "")
		require.NoError(t, err)
		order, err := c.CreateOrder(ctx, billing(), "")
		require.NoError(t, err)
		placed = append(placed, order.ID)
	}

	t.Run("list returns newest first", func(t *testing.T) {
		status, env := doJSON(t, h.server.Client(), http.MethodGet, h.server.URL+"/orders", token, nil)
		require.Equal(t, http.StatusOK, status)

		var orders []domain.Order
		require.NoError(t, json.Unmarshal(env.Data, &orders))
		require.Len(t, orders, 2)
		assert.Equal(t, placed[1], orders[0].ID)
		assert.Equal(t, placed[0], orders[1].ID)
		for _, o := range orders {
			assert.Len(t, o.Items, 1)
		}
	})

	t.Run("get by id is scoped to the owner", func(t *testing.T) {
		status, env := doJSON(t, h.server.Client(), http.MethodGet, h.server.URL+"/orders/"+placed[0], token, nil)
		require.Equal(t, http.StatusOK, status)

		var order domain.Order
		require.NoError(t, json.Unmarshal(env.Data, &order))
		assert.Equal(t, placed[0], order.ID)

		other, err := h.jwt.IssueToken("someone-else", time.Hour)
		require.NoError(t, err)
		status, env = doJSON(t, h.server.Client(), http.MethodGet, h.server.URL+"/orders/"+placed[0], other, nil)
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, domain.KindNotFound, env.Error.Kind)
	})

	t.Run("latest without orders is not found", func(t *testing.T) {
		_, err := h.client(t, "user-no-orders").LatestOrder(ctx)
		assert.Equal(t, domain.KindNotFound, kindOf(t, err))
	})
}

func TestInventoryService(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	db := OpenDB(t, SetupPostgres(ctx, t))
	handler := inventory.NewHandler(inventory.NewInventoryRepository(db), slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stock", handler.HandleListStock)
	mux.HandleFunc("GET /stock/{variationId}", handler.HandleGetStock)
	mux.HandleFunc("GET /stock/{variationId}/availability", handler.HandleAvailability)
	mux.HandleFunc("POST /stock/{variationId}/restock", handler.HandleRestock)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("list and get", func(t *testing.T) {
		status, env := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/stock", "", nil)
		require.Equal(t, http.StatusOK, status)
		var all []domain.Variation
		require.NoError(t, json.Unmarshal(env.Data, &all))
		assert.Len(t, all, 5)

		status, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/stock/VAR-NOPE", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("availability reports shortfalls with on-hand count", func(t *testing.T) {
		status, env := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/stock/VAR-HOODIE-XL-BLK/availability?quantity=3", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, env.Success)

		status, env = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/stock/VAR-HOODIE-XL-BLK/availability?quantity=4", "", nil)
		require.Equal(t, http.StatusConflict, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, domain.KindItemUnavailable, env.Error.Kind)
		require.NotNil(t, env.Error.Available)
		assert.Equal(t, 3, *env.Error.Available)
	})

	t.Run("restock adds to on-hand quantity", func(t *testing.T) {
		status, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/stock/VAR-CAP-OS-RED/restock", "", map[string]int{"quantity": 4})
		require.Equal(t, http.StatusOK, status)

		var v domain.Variation
		require.NoError(t, json.Unmarshal(env.Data, &v))
		assert.Equal(t, 5, v.Quantity)

		status, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/stock/VAR-CAP-OS-RED/restock", "", map[string]int{"quantity": 0})
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})
}

//go:build integration

package test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/cartclient"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/storefront"
)

const (
	jwtSecret     = "integration-secret"
	internalToken = "integration-internal"
)

// harness runs the storefront HTTP surface against a real database.
type harness struct {
	db     *sql.DB
	server *httptest.Server
	jwt    *identity.JWTResolver
}

func newHarness(t *testing.T, db *sql.DB, opts ...orders.EngineOption) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	carts := cart.NewCartRepository(db)
	products := catalog.NewRepository(db)
	stock := inventory.NewInventoryRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	store := cart.NewStore(carts, products, cart.NewRedisCache(rdb, time.Minute), logger)
	opts = append([]orders.EngineOption{orders.WithCartInvalidator(store)}, opts...)
	engine, err := orders.NewEngine(orders.NewSQLUnitOfWork(db, carts, products, stock, orderRepo), orderRepo, logger, opts...)
	require.NoError(t, err)

	resolver := identity.NewJWTResolver(jwtSecret)
	mux := http.NewServeMux()
	storefront.Routes(mux, db, resolver, internalToken, cart.NewHandler(store, logger), orders.NewHandler(engine, logger), logger)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &harness{db: db, server: srv, jwt: resolver}
}

func (h *harness) client(t *testing.T, userID string) *cartclient.Client {
	t.Helper()
	token, err := h.jwt.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return cartclient.New(h.server.URL, token, cartclient.WithHTTPClient(h.server.Client()))
}

func (h *harness) setStock(t *testing.T, variationID string, quantity int) {
	t.Helper()
	_, err := h.db.ExecContext(context.Background(), `UPDATE variations SET quantity = $2 WHERE id = $1`, variationID, quantity)
	require.NoError(t, err)
}

func (h *harness) stock(t *testing.T, variationID string) int {
	t.Helper()
	var qty int
	require.NoError(t, h.db.QueryRowContext(context.Background(), `SELECT quantity FROM variations WHERE id = $1`, variationID).Scan(&qty))
	return qty
}

func (h *harness) orderCount(t *testing.T, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, h.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&n))
	return n
}

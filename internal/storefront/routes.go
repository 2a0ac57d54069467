// Package storefront assembles the cart and checkout HTTP surface.
package storefront

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Routes registers every storefront endpoint on mux. User routes go through resolver
// and fail closed; the status route needs internalToken.
func Routes(mux *http.ServeMux, db Pinger, resolver identity.Resolver, internalToken string, carts *cart.Handler, orderHandler *orders.Handler, logger *slog.Logger) {
	resp := api.NewResponder(logger)
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(identity.Require(resolver, resp, h))
	}

	mux.HandleFunc("GET /cart", authed(carts.HandleFetch))
	mux.HandleFunc("POST /cart/items", authed(carts.HandleAddItem))
	mux.HandleFunc("PATCH /cart/items/{id}", authed(carts.HandleUpdateItem))
	mux.HandleFunc("DELETE /cart/items/{id}", authed(carts.HandleRemoveItem))
	mux.HandleFunc("DELETE /cart", authed(carts.HandleClear))

	mux.HandleFunc("POST /orders", authed(orderHandler.HandleCreate))
	mux.HandleFunc("GET /orders", authed(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/latest", authed(orderHandler.HandleGet))
	mux.HandleFunc("GET /orders/{id}", authed(orderHandler.HandleGet))

	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(
		identity.RequireServiceToken(internalToken, resp, orderHandler.HandleUpdateStatus),
	))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			resp.Fail(w, err)
			return
		}
		resp.OK(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

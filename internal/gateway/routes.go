package gateway

import "net/http"

// Routes registers the public surface. wrap decorates every handler, e.g. with
// route tagging for traces.
func Routes(mux *http.ServeMux, h *Handler, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/cart", wrap(h.HandleStorefront))
	mux.HandleFunc("/cart/", wrap(h.HandleStorefront))
	mux.HandleFunc("/orders", wrap(h.HandleStorefront))
	mux.HandleFunc("/orders/", wrap(h.HandleStorefront))
	mux.HandleFunc("GET /inventory", wrap(h.HandleInventory))
	mux.HandleFunc("GET /inventory/{variationId}", wrap(h.HandleInventory))
	mux.HandleFunc("GET /inventory/{variationId}/availability", wrap(h.HandleInventory))

	mux.HandleFunc("PATCH /orders/{id}/status", wrap(h.HandleInternal))
	mux.HandleFunc("POST /inventory/{variationId}/restock", wrap(h.HandleInternal))
}

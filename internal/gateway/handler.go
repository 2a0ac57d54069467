// Package gateway is the public edge in front of the storefront and inventory services.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Handler struct {
	storefrontProxy *ServiceProxy
	inventoryProxy  *ServiceProxy
	logger          *slog.Logger
}

func NewHandler(storefrontProxy, inventoryProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		storefrontProxy: storefrontProxy,
		inventoryProxy:  inventoryProxy,
		logger:          logger,
	}
}

// HandleStorefront proxies cart and order routes unchanged.
func (h *Handler) HandleStorefront(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storefrontProxy, r.URL.Path)
}

// HandleInventory maps /inventory/... onto the inventory service's /stock/... routes.
func (h *Handler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	path := strings.Replace(r.URL.Path, "/inventory", "/stock", 1)
	h.proxyRequest(w, r, h.inventoryProxy, path)
}

// HandleInternal answers routes that exist upstream but are not public.
func (h *Handler) HandleInternal(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("blocked internal route", "method", r.Method, "path", r.URL.Path)
	h.writeError(w, http.StatusNotFound, domain.KindNotFound, "route not found")
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, domain.KindInternal, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	env := api.Envelope{Error: &api.ErrorBody{Kind: kind, Message: message}}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

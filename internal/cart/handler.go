package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

// IdempotencyHeader carries a client-generated key that makes a replayed add a no-op.
const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	store  *Store
	resp   *api.Responder
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		resp:   api.NewResponder(logger),
		logger: logger,
	}
}

func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFromContext(r.Context())

	cart, err := h.store.Fetch(r.Context(), userID)
	if errors.Is(err, &domain.Error{Kind: domain.KindNotFound}) {
		cart, err = domain.EmptyCart(userID), nil
	}
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusOK, cart)
}

type addItemRequest struct {
	VariationID string `json:"variation_id"`
	Quantity    int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFromContext(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.BadRequest(w, "invalid request body")
		return
	}
	if req.VariationID == "" {
		h.resp.BadRequest(w, "missing variation id")
		return
	}

	cart, err := h.store.AddItem(r.Context(), userID, req.VariationID, req.Quantity, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusOK, cart)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFromContext(r.Context())

	itemID := r.PathValue("id")
	if itemID == "" {
		h.resp.BadRequest(w, "missing cart item id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.BadRequest(w, "invalid request body")
		return
	}

	cart, err := h.store.UpdateItemQuantity(r.Context(), userID, itemID, req.Quantity)
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusOK, cart)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFromContext(r.Context())

	itemID := r.PathValue("id")
	if itemID == "" {
		h.resp.BadRequest(w, "missing cart item id")
		return
	}

	cart, err := h.store.RemoveItem(r.Context(), userID, itemID)
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusOK, cart)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFromContext(r.Context())

	cart, err := h.store.Clear(r.Context(), userID)
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusOK, cart)
}

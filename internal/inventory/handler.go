package inventory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Handler struct {
	repo   *InventoryRepository
	guard  *Guard
	resp   *api.Responder
	logger *slog.Logger
}

func NewHandler(repo *InventoryRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		guard:  NewGuard(repo),
		resp:   api.NewResponder(logger),
		logger: logger,
	}
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.logger.Info("stock listed", "count", len(items))
	h.resp.OK(w, http.StatusOK, items)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	variationID := r.PathValue("variationId")
	if variationID == "" {
		h.resp.BadRequest(w, "missing variation id")
		return
	}

	variation, err := h.repo.GetVariation(r.Context(), nil, variationID)
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	if variation == nil {
		h.resp.Fail(w, domain.NotFound("variation"))
		return
	}

	h.logger.Info("stock retrieved", "variation_id", variationID)
	h.resp.OK(w, http.StatusOK, variation)
}

type availability struct {
	VariationID string `json:"variation_id"`
	Requested   int    `json:"requested"`
	Available   bool   `json:"available"`
}

// HandleAvailability answers whether ?quantity= units could be bought right now.
// Shortfalls come back as ItemUnavailable with the on-hand count.
func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	variationID := r.PathValue("variationId")
	requested := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			h.resp.BadRequest(w, "quantity must be an integer")
			return
		}
		requested = n
	}
	if requested < 1 {
		h.resp.Fail(w, domain.InvalidQuantity(requested))
		return
	}

	if err := h.guard.Check(r.Context(), nil, variationID, requested); err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusOK, availability{VariationID: variationID, Requested: requested, Available: true})
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	variationID := r.PathValue("variationId")
	if variationID == "" {
		h.resp.BadRequest(w, "missing variation id")
		return
	}

	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.BadRequest(w, "invalid request body")
		return
	}

	if req.Quantity < 1 {
		h.resp.Fail(w, domain.InvalidQuantity(req.Quantity))
		return
	}

	if err := h.repo.Restock(r.Context(), nil, variationID, req.Quantity); err != nil {
		h.resp.Fail(w, err)
		return
	}

	variation, err := h.repo.GetVariation(r.Context(), nil, variationID)
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.logger.Info("stock replenished", "variation_id", variationID, "quantity", req.Quantity)
	h.resp.OK(w, http.StatusOK, variation)
}

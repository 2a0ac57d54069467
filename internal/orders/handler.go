package orders

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	engine *Engine
	resp   *api.Responder
	logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		resp:   api.NewResponder(logger),
		logger: logger,
	}
}

type createOrderRequest struct {
	Billing domain.BillingInput `json:"billing"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFromContext(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.BadRequest(w, "invalid request body")
		return
	}

	order, err := h.engine.CreateOrder(r.Context(), userID, req.Billing, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFromContext(r.Context())

	order, err := h.engine.GetOrder(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFromContext(r.Context())

	orders, err := h.engine.ListOrders(r.Context(), userID)
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.logger.Info("orders listed", "user_id", userID, "count", len(orders))
	h.resp.OK(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.resp.BadRequest(w, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.BadRequest(w, "invalid request body")
		return
	}

	order, err := h.engine.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.resp.Fail(w, err)
		return
	}

	h.resp.OK(w, http.StatusOK, order)
}

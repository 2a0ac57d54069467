package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

const serviceToken = "internal-secret"

type downstream struct {
	mu          sync.Mutex
	emails      []map[string]string
	statuses    []string
	emailCode   int
	confirmCode int
}

func (d *downstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		d.mu.Lock()
		d.emails = append(d.emails, body)
		code := d.emailCode
		d.mu.Unlock()
		w.WriteHeader(code)
	})
	mux.HandleFunc("PATCH /orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(identity.ServiceTokenHeader) != serviceToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		d.mu.Lock()
		d.statuses = append(d.statuses, r.PathValue("id")+"="+body["status"])
		code := d.confirmCode
		d.mu.Unlock()
		w.WriteHeader(code)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (d *downstream) sent() []map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]map[string]string(nil), d.emails...)
}

func (d *downstream) confirmed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.statuses...)
}

func placedPayload(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(domain.OrderPlacedEvent{
		OrderID:     "order-1",
		UserID:      "user-1",
		Email:       "ana@example.com",
		TotalAmount: decimal.RequireFromString("100.00"),
		Items: []domain.OrderItem{{
			VariationID: "VAR-A", ProductName: "Classic Tee", Quantity: 2,
			UnitPrice: decimal.RequireFromString("50.00"), LineTotal: decimal.RequireFromString("100.00"),
		}},
	})
	require.NoError(t, err)
	return data
}

func newTestHandler(t *testing.T, d *downstream) *ReceiptHandler {
	srv := d.server(t)
	return NewReceiptHandler(srv.URL, srv.URL, serviceToken, srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReceiptHandler_Handle(t *testing.T) {
	t.Run("mails a receipt then confirms", func(t *testing.T) {
		d := &downstream{emailCode: http.StatusOK, confirmCode: http.StatusOK}
		h := newTestHandler(t, d)

		require.NoError(t, h.Handle(context.Background(), placedPayload(t)))

		emails := d.sent()
		require.Len(t, emails, 1)
		assert.Equal(t, "ana@example.com", emails[0]["to"])
		assert.Contains(t, emails[0]["body"], "2 x Classic Tee @ 50.00 = 100.00")
		assert.Contains(t, emails[0]["body"], "Total: 100.00")
		assert.Equal(t, []string{"order-1=CONFIRMED"}, d.confirmed())
	})

	t.Run("email outage is retryable and skips confirmation", func(t *testing.T) {
		d := &downstream{emailCode: http.StatusServiceUnavailable, confirmCode: http.StatusOK}
		h := newTestHandler(t, d)

		err := h.Handle(context.Background(), placedPayload(t))
		require.Error(t, err)
		assert.False(t, messaging.IsPermanent(err))
		assert.Empty(t, d.confirmed())
	})

	t.Run("refused confirmation is permanent", func(t *testing.T) {
		d := &downstream{emailCode: http.StatusOK, confirmCode: http.StatusUnprocessableEntity}
		h := newTestHandler(t, d)

		err := h.Handle(context.Background(), placedPayload(t))
		require.Error(t, err)
		assert.True(t, messaging.IsPermanent(err))
		var rejected *rejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, http.StatusUnprocessableEntity, rejected.status)
	})

	t.Run("confirmation without the service token is refused", func(t *testing.T) {
		d := &downstream{emailCode: http.StatusOK, confirmCode: http.StatusOK}
		srv := d.server(t)
		h := NewReceiptHandler(srv.URL, srv.URL, "", srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))

		err := h.Handle(context.Background(), placedPayload(t))
		require.Error(t, err)
		assert.True(t, messaging.IsPermanent(err))
		assert.Empty(t, d.confirmed())
	})

	t.Run("garbage payload", func(t *testing.T) {
		h := newTestHandler(t, &downstream{})
		assert.True(t, messaging.IsPermanent(h.Handle(context.Background(), []byte("{"))))
		assert.True(t, messaging.IsPermanent(h.Handle(context.Background(), []byte(`{"user_id":"u"}`))))
	})
}

func TestReceiptHandler_BreakerOpens(t *testing.T) {
	d := &downstream{emailCode: http.StatusBadGateway}
	h := newTestHandler(t, d)

	for range 5 {
		_ = h.Handle(context.Background(), placedPayload(t))
	}
	require.Len(t, d.sent(), 5)

	err := h.Handle(context.Background(), placedPayload(t))
	require.Error(t, err)
	assert.Len(t, d.sent(), 5, "open breaker short-circuits the call")
}

func TestReceiptHandler_RejectionsDoNotTripBreaker(t *testing.T) {
	d := &downstream{emailCode: http.StatusBadRequest}
	h := newTestHandler(t, d)

	for range 7 {
		_ = h.Handle(context.Background(), placedPayload(t))
	}
	assert.Len(t, d.sent(), 7)
}

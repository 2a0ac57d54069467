// Package worker reacts to placed orders: it mails a receipt and confirms the order.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

// rejectedError is a 4xx answer from a downstream service. Retrying will not help and
// it says nothing about the service's health.
type rejectedError struct {
	service string
	status  int
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("%s service rejected request with status %d", e.service, e.status)
}

type ReceiptHandler struct {
	emailServiceURL      string
	storefrontServiceURL string
	serviceToken         string
	httpClient           *http.Client
	emailBreaker         *gobreaker.CircuitBreaker[struct{}]
	storefrontBreaker    *gobreaker.CircuitBreaker[struct{}]
	logger               *slog.Logger
}

// NewReceiptHandler builds the handler. serviceToken is sent on the order
// confirmation call, which the storefront only accepts from internal callers.
func NewReceiptHandler(emailServiceURL, storefrontServiceURL, serviceToken string, client *http.Client, logger *slog.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		emailServiceURL:      emailServiceURL,
		storefrontServiceURL: storefrontServiceURL,
		serviceToken:         serviceToken,
		httpClient:           client,
		emailBreaker:         newBreaker("email", logger),
		storefrontBreaker:    newBreaker("storefront", logger),
		logger:               logger,
	}
}

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var rejected *rejectedError
			return err == nil || errors.As(err, &rejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Handle processes one order.placed payload. Undecodable payloads and orders the
// storefront refuses to confirm are permanent failures; everything else is retried
// by the consumer.
func (h *ReceiptHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order placed event: %w", err))
	}
	if event.OrderID == "" {
		return messaging.Permanent(errors.New("order placed event without order id"))
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	if err := h.sendReceipt(ctx, event); err != nil {
		h.logger.Error("failed to send receipt", "error", err, "order_id", event.OrderID)
		var rejected *rejectedError
		if errors.As(err, &rejected) {
			return messaging.Permanent(fmt.Errorf("send receipt: %w", err))
		}
		return fmt.Errorf("send receipt: %w", err)
	}

	if err := h.confirmOrder(ctx, event.OrderID); err != nil {
		var rejected *rejectedError
		if errors.As(err, &rejected) {
			h.logger.Warn("order not confirmable", "order_id", event.OrderID, "status", rejected.status)
			return messaging.Permanent(err)
		}
		h.logger.Error("failed to confirm order", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("confirm order: %w", err)
	}

	h.logger.Info("order confirmed", "order_id", event.OrderID)
	return nil
}

func (h *ReceiptHandler) sendReceipt(ctx context.Context, event domain.OrderPlacedEvent) error {
	body := map[string]string{
		"to":      event.Email,
		"subject": "Your order " + event.OrderID,
		"body":    receiptBody(event),
	}
	_, err := h.emailBreaker.Execute(func() (struct{}, error) {
		return struct{}{}, h.send(ctx, "email", http.MethodPost, h.emailServiceURL+"/send", body)
	})
	return err
}

func (h *ReceiptHandler) confirmOrder(ctx context.Context, orderID string) error {
	url := fmt.Sprintf("%s/orders/%s/status", h.storefrontServiceURL, orderID)
	body := map[string]string{"status": string(domain.OrderStatusConfirmed)}
	_, err := h.storefrontBreaker.Execute(func() (struct{}, error) {
		return struct{}{}, h.send(ctx, "storefront", http.MethodPatch, url, body)
	})
	return err
}

func (h *ReceiptHandler) send(ctx context.Context, service, method, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if service == "storefront" {
		req.Header.Set(identity.ServiceTokenHeader, h.serviceToken)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &rejectedError{service: service, status: resp.StatusCode}
	default:
		return fmt.Errorf("%s service returned status %d", service, resp.StatusCode)
	}
}

func receiptBody(event domain.OrderPlacedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your order %s.\n\n", event.OrderID)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "%d x %s @ %s = %s\n", item.Quantity, item.ProductName, item.UnitPrice.StringFixed(2), item.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", event.TotalAmount.StringFixed(2))
	return b.String()
}

// Package cartclient is the client side of the cart: a typed HTTP client for the
// storefront API and an optimistic cart cache built on top of it.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// API is the subset of storefront calls the cache needs.
type API interface {
	Cart(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, variationID string, quantity int, idempotencyKey string) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, itemID string) (*domain.Cart, error)
	Clear(ctx context.Context) (*domain.Cart, error)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{baseURL: baseURL, token: token, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Cart(ctx context.Context) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.do(ctx, http.MethodGet, "/cart", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddItem generates an idempotency key when none is given, so a retried call with
// the same key is applied once.
func (c *Client) AddItem(ctx context.Context, variationID string, quantity int, idempotencyKey string) (*domain.Cart, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	body := map[string]any{"variation_id": variationID, "quantity": quantity}
	headers := map[string]string{"Idempotency-Key": idempotencyKey}

	var out domain.Cart
	if err := c.do(ctx, http.MethodPost, "/cart/items", body, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.do(ctx, http.MethodPatch, "/cart/items/"+itemID, map[string]int{"quantity": quantity}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveItem(ctx context.Context, itemID string) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.do(ctx, http.MethodDelete, "/cart/items/"+itemID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Clear(ctx context.Context) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.do(ctx, http.MethodDelete, "/cart", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, billing domain.BillingInput, idempotencyKey string) (*domain.Order, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}

	var out domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders", map[string]any{"billing": billing}, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LatestOrder(ctx context.Context) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodGet, "/orders/latest", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request and unwraps the envelope. Failure envelopes come back as
// *domain.Error; anything else that is not an envelope is returned as a plain error.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s returned status %d: %w", method, path, resp.StatusCode, err)
	}

	if !env.Success {
		if env.Error == nil {
			return fmt.Errorf("%s %s returned status %d without an error body", method, path, resp.StatusCode)
		}
		return env.Error.Err()
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

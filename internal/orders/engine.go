// Package orders turns a user's cart into an immutable, priced order in one
// serializable transaction and serves order lookups.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

const (
	DefaultTimeout    = 20 * time.Second
	DefaultMaxRetries = 3
)

var tracer = otel.Tracer("storefront/orders")

// EventPublisher receives the order placed event after commit.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// CartInvalidator drops any cached copy of a drained cart.
type CartInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type Engine struct {
	uow         UnitOfWork
	orders      *OrderRepository
	publisher   EventPublisher
	invalidator CartInvalidator
	timeout     time.Duration
	maxRetries  int
	now         func() time.Time
	metrics     *checkoutMetrics
	logger      *slog.Logger
}

type EngineOption func(*Engine)

func WithPublisher(p EventPublisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

func WithCartInvalidator(c CartInvalidator) EngineOption {
	return func(e *Engine) { e.invalidator = c }
}

func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) { e.maxRetries = n }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(uow UnitOfWork, orders *OrderRepository, logger *slog.Logger, opts ...EngineOption) (*Engine, error) {
	metrics, err := newCheckoutMetrics()
	if err != nil {
		return nil, fmt.Errorf("create checkout metrics: %w", err)
	}

	e := &Engine{
		uow:        uow,
		orders:     orders,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
		metrics:    metrics,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type placement struct {
	order    *domain.Order
	replayed bool
}

// CreateOrder validates, prices and persists the user's cart as a PENDING order and
// drains the cart, all or nothing. Serialization failures are retried up to the
// configured bound before TransactionConflict is returned.
func (e *Engine) CreateOrder(ctx context.Context, userID string, input domain.BillingInput, idempotencyKey string) (*domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	billing, err := NormalizeBilling(input)
	if err != nil {
		e.metrics.record(ctx, domain.KindValidation, 0)
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "orders.CreateOrder",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var result placement
	retried := false
	err = database.RetrySerializable(ctx, e.maxRetries, func(ctx context.Context) error {
		return e.uow.Serializable(ctx, func(ctx context.Context, l Ledger) error {
			p, err := e.place(ctx, l, userID, billing, idempotencyKey)
			if err != nil {
				// A cart that was full on the first attempt and is empty on a retry
				// was drained by a concurrent checkout of the same cart.
				if retried && errors.Is(err, domain.ErrEmptyCart) {
					return domain.ErrTransactionConflict
				}
				return err
			}
			result = p
			return nil
		})
	}, func(n int, err error) {
		retried = true
		e.metrics.retries.Add(ctx, 1)
		e.logger.Warn("checkout serialization conflict, retrying", "user_id", userID, "attempt", n, "error", err)
	})

	elapsed := time.Since(started)
	if err != nil {
		err = e.classify(ctx, err)
		kind := domain.KindOf(err)
		e.metrics.record(ctx, kind, elapsed)
		span.SetAttributes(attribute.String("checkout.outcome", string(kind)))
		if kind == domain.KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		e.logger.Info("checkout failed", "user_id", userID, "kind", kind, "error", err)
		return nil, err
	}

	order := result.order
	e.metrics.record(ctx, "", elapsed)
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Bool("checkout.replayed", result.replayed),
	)

	if result.replayed {
		e.logger.Info("checkout replayed", "user_id", userID, "order_id", order.ID, "idempotency_key", idempotencyKey)
		return order, nil
	}

	if e.invalidator != nil {
		e.invalidator.Invalidate(ctx, userID)
	}
	e.publishPlaced(ctx, order)

	e.logger.Info("order created", "order_id", order.ID, "user_id", userID, "total_amount", order.TotalAmount.StringFixed(2), "items", len(order.Items))
	return order, nil
}

func (e *Engine) place(ctx context.Context, l Ledger, userID string, billing domain.BillingInput, idempotencyKey string) (placement, error) {
	if idempotencyKey != "" {
		existing, err := l.FindByIdempotencyKey(ctx, userID, idempotencyKey)
		if err != nil {
			return placement{}, fmt.Errorf("find order by idempotency key: %w", err)
		}
		if existing != nil {
			return placement{order: existing, replayed: true}, nil
		}
	}

	c, err := l.LockCart(ctx, userID)
	if err != nil {
		return placement{}, fmt.Errorf("lock cart: %w", err)
	}
	if c.IsEmpty() {
		return placement{}, domain.ErrEmptyCart
	}

	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.VariationID)
	}
	stock, err := l.LockVariations(ctx, ids)
	if err != nil {
		return placement{}, fmt.Errorf("lock variations: %w", err)
	}

	for _, item := range c.Items {
		v, ok := stock[item.VariationID]
		if !ok {
			return placement{}, domain.ItemUnavailable(item.VariationID, 0)
		}
		if err := inventory.CheckAvailability(v, item.Quantity); err != nil {
			return placement{}, nameItem(err, item)
		}
	}

	now := e.now()
	order := &domain.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.Zero,
		Billing:     billing.Address,
		Email:       billing.Email,
		Phone:       billing.Phone,
		Shipping:    *billing.Shipping,
		Items:       make([]domain.OrderItem, 0, len(c.Items)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, item := range c.Items {
		if item.Product == nil {
			return placement{}, fmt.Errorf("product for variation %s not found", item.VariationID)
		}
		unitPrice := pricing.ResolvePrice(*item.Product, item.Quantity)
		lineTotal := pricing.LineTotal(unitPrice, item.Quantity)
		order.Items = append(order.Items, domain.OrderItem{
			ID:          uuid.New().String(),
			VariationID: item.VariationID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
		order.TotalAmount = order.TotalAmount.Add(lineTotal)
	}

	for _, item := range order.Items {
		if err := l.DecrementStock(ctx, item.VariationID, item.Quantity); err != nil {
			if errors.Is(err, inventory.ErrInsufficientStock) {
				return placement{}, domain.ItemUnavailable(item.VariationID, stock[item.VariationID].Quantity)
			}
			return placement{}, fmt.Errorf("decrement stock: %w", err)
		}
	}

	if err := l.InsertOrder(ctx, order, idempotencyKey); err != nil {
		return placement{}, fmt.Errorf("insert order: %w", err)
	}

	if err := l.DrainCart(ctx, c.ID); err != nil {
		return placement{}, fmt.Errorf("drain cart: %w", err)
	}

	return placement{order: order}, nil
}

// classify maps a failed checkout to the error kind callers see.
func (e *Engine) classify(ctx context.Context, err error) error {
	var derr *domain.Error
	switch {
	case errors.As(err, &derr):
		return derr
	case errors.Is(err, database.ErrRetriesExhausted):
		return domain.ErrTransactionConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.ErrTimeout
	default:
		return err
	}
}

func (e *Engine) publishPlaced(ctx context.Context, order *domain.Order) {
	if e.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.publisher.Publish(ctx, order.ID, domain.NewOrderPlacedEvent(order)); err != nil {
		e.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
	}
}

func nameItem(err error, item domain.CartItem) error {
	var derr *domain.Error
	if !errors.As(err, &derr) || item.Product == nil {
		return err
	}
	named := *derr
	named.Message = fmt.Sprintf("%s (%s): %s", item.Product.Name, item.VariationID, derr.Message)
	return &named
}

// GetOrder returns a specific order of the user, or their latest when orderID is empty.
func (e *Engine) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	var order *domain.Order
	var err error
	if orderID == "" {
		order, err = e.orders.Latest(ctx, userID)
	} else {
		order, err = e.orders.GetByID(ctx, nil, userID, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, domain.NotFound("order")
	}
	return order, nil
}

func (e *Engine) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	orders, err := e.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. Cancelling puts the ordered
// quantities back in stock in the same transaction.
func (e *Engine) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, domain.ValidationError(map[string]string{"status": "unknown order status"})
	}

	var updated *domain.Order
	err := database.RetrySerializable(ctx, e.maxRetries, func(ctx context.Context) error {
		return e.uow.Serializable(ctx, func(ctx context.Context, l Ledger) error {
			current, found, err := l.LockOrderStatus(ctx, orderID)
			if err != nil {
				return fmt.Errorf("lock order: %w", err)
			}
			if !found {
				return domain.NotFound("order")
			}
			if current == next {
				updated, err = l.GetOrder(ctx, orderID)
				return err
			}
			if !current.CanTransitionTo(next) {
				return domain.ValidationError(map[string]string{
					"status": fmt.Sprintf("cannot move order from %s to %s", current, next),
				})
			}

			if err := l.SetOrderStatus(ctx, orderID, next); err != nil {
				return fmt.Errorf("set order status: %w", err)
			}

			order, err := l.GetOrder(ctx, orderID)
			if err != nil {
				return fmt.Errorf("reload order: %w", err)
			}

			if next == domain.OrderStatusCancelled {
				for _, item := range order.Items {
					if err := l.RestoreStock(ctx, item.VariationID, item.Quantity); err != nil {
						return fmt.Errorf("restore stock: %w", err)
					}
				}
			}

			updated = order
			return nil
		})
	}, nil)
	if err != nil {
		return nil, e.classify(ctx, err)
	}

	e.logger.Info("order status updated", "order_id", orderID, "status", updated.Status)
	return updated, nil
}

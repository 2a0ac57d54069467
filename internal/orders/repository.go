package orders

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

const orderColumns = `
	id, user_id, status, total_amount,
	billing_name, billing_email, billing_phone, billing_line1, billing_line2,
	billing_city, billing_state, billing_postal, billing_country,
	shipping_name, shipping_line1, shipping_line2, shipping_city, shipping_state,
	shipping_postal, shipping_country, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row interface{ Scan(...any) error }, o *domain.Order) error {
	return row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount,
		&o.Billing.FullName, &o.Email, &o.Phone, &o.Billing.Line1, &o.Billing.Line2,
		&o.Billing.City, &o.Billing.State, &o.Billing.PostalCode, &o.Billing.Country,
		&o.Shipping.FullName, &o.Shipping.Line1, &o.Shipping.Line2, &o.Shipping.City, &o.Shipping.State,
		&o.Shipping.PostalCode, &o.Shipping.Country, &o.CreatedAt, &o.UpdatedAt,
	)
}

// Insert writes the order header and its lines. Call it inside the checkout transaction.
func (r *OrderRepository) Insert(ctx context.Context, tx *sql.Tx, order *domain.Order, idempotencyKey string) error {
	key := sql.NullString{String: idempotencyKey, Valid: idempotencyKey != ""}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`,
		order.ID, order.UserID, order.Status, order.TotalAmount,
		order.Billing.FullName, order.Email, order.Phone, order.Billing.Line1, order.Billing.Line2,
		order.Billing.City, order.Billing.State, order.Billing.PostalCode, order.Billing.Country,
		order.Shipping.FullName, order.Shipping.Line1, order.Shipping.Line2, order.Shipping.City, order.Shipping.State,
		order.Shipping.PostalCode, order.Shipping.Country, order.CreatedAt, order.UpdatedAt, key,
	)
	if err != nil {
		return err
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, variation_id, product_name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, item.ID, order.ID, i, item.VariationID, item.ProductName, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return err
		}
	}

	return nil
}

// FindByIdempotencyKey returns nil, nil when the user never used key.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, q database.Querier, userID, key string) (*domain.Order, error) {
	var id string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM orders WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r.GetByID(ctx, q, "", id)
}

// GetByID loads an order with its lines. A non-empty userID scopes the lookup to that
// owner. It returns nil, nil when nothing matches. A nil q reads from the pool.
func (r *OrderRepository) GetByID(ctx context.Context, q database.Querier, userID, id string) (*domain.Order, error) {
	if q == nil {
		q = r.db
	}

	order := &domain.Order{}
	err := scanOrder(q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND ($2 = '' OR user_id = $2)
	`, id, userID), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.loadItems(ctx, q, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

// Latest returns the user's most recent order, or nil, nil.
func (r *OrderRepository) Latest(ctx context.Context, userID string) (*domain.Order, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r.GetByID(ctx, nil, userID, id)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	var orderIDs []string
	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, r.db, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, q database.Querier, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, id, variation_id, product_name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.VariationID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// LockStatus row-locks the order and returns its current status. It reports
// found=false when the order does not exist.
func (r *OrderRepository) LockStatus(ctx context.Context, tx *sql.Tx, id string) (domain.OrderStatus, bool, error) {
	var status domain.OrderStatus
	err := tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return status, true, nil
}

func (r *OrderRepository) SetStatus(ctx context.Context, tx *sql.Tx, id string, status domain.OrderStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	return err
}

package cart

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) DB() *sql.DB {
	return r.db
}

// EnsureCart returns the user's cart id, creating the cart on first use. The upsert
// also takes the cart row lock for the rest of tx.
func (r *CartRepository) EnsureCart(ctx context.Context, tx *sql.Tx, userID string) (string, error) {
	var cartID string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, uuid.New().String(), userID).Scan(&cartID)
	return cartID, err
}

// LockCart row-locks the user's cart inside tx. It returns "" when the user has no cart.
func (r *CartRepository) LockCart(ctx context.Context, tx *sql.Tx, userID string) (string, error) {
	var cartID string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM carts WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&cartID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return cartID, err
}

// RecordMutation stores an idempotency key against the cart. It reports false when the
// key was already recorded, meaning the mutation has been applied before.
func (r *CartRepository) RecordMutation(ctx context.Context, tx *sql.Tx, cartID, key string) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO cart_mutations (cart_id, idempotency_key, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (cart_id, idempotency_key) DO NOTHING
	`, cartID, key)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

// MutationApplied reports whether key was already recorded against the user's cart.
func (r *CartRepository) MutationApplied(ctx context.Context, userID, key string) (bool, error) {
	var applied bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM cart_mutations m
			JOIN carts c ON c.id = m.cart_id
			WHERE c.user_id = $1 AND m.idempotency_key = $2
		)
	`, userID, key).Scan(&applied)
	return applied, err
}

// UpsertItem adds quantity to the (cart, variation) line, creating it if needed.
func (r *CartRepository) UpsertItem(ctx context.Context, tx *sql.Tx, cartID, variationID string, quantity int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, variation_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (cart_id, variation_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, uuid.New().String(), cartID, variationID, quantity)
	return err
}

// OwnedItem returns the variation behind a cart item that belongs to userID, or nil
// if there is no such item.
func (r *CartRepository) OwnedItem(ctx context.Context, userID, itemID string) (*domain.Variation, error) {
	v := &domain.Variation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT v.id, v.product_id, v.quantity
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN variations v ON v.id = ci.variation_id
		WHERE ci.id = $1 AND c.user_id = $2
	`, itemID, userID).Scan(&v.ID, &v.ProductID, &v.Quantity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// SetQuantity overwrites a line's quantity. It reports false if the item is not in
// the user's cart.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, itemID string, quantity int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items ci
		SET quantity = $3
		FROM carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1 AND ci.id = $2
	`, userID, itemID, quantity)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *CartRepository) DeleteItem(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1 AND ci.id = $2
	`, userID, itemID)
	return err
}

// DeleteAllItems empties the user's cart. A nil q runs on the pool.
func (r *CartRepository) DeleteAllItems(ctx context.Context, q database.Querier, userID string) error {
	if q == nil {
		q = r.db
	}
	_, err := q.ExecContext(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1
	`, userID)
	return err
}

// Drain deletes every line of cartID and bumps the cart row so a concurrent
// serializable reader of the same cart fails instead of seeing stale lines.
func (r *CartRepository) Drain(ctx context.Context, tx *sql.Tx, cartID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID)
	return err
}

// Load reads the user's cart with every line joined to its variation. Products are
// attached by the caller. It returns nil, nil when the user has no cart.
func (r *CartRepository) Load(ctx context.Context, q database.Querier, userID string) (*domain.Cart, error) {
	if q == nil {
		q = r.db
	}

	cart := &domain.Cart{}
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT ci.id, ci.variation_id, ci.quantity,
		       v.product_id, v.size, v.color, v.quantity, v.sku, v.barcode, v.image_url
		FROM cart_items ci
		JOIN variations v ON v.id = ci.variation_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id
	`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		item := domain.CartItem{CartID: cart.ID}
		v := &domain.Variation{}
		if err := rows.Scan(&item.ID, &item.VariationID, &item.Quantity,
			&v.ProductID, &v.Size, &v.Color, &v.Quantity, &v.SKU, &v.Barcode, &v.ImageURL); err != nil {
			return nil, err
		}
		v.ID = item.VariationID
		item.Variation = v
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

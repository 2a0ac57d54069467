package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrInsufficientStock = errors.New("insufficient stock")

const variationColumns = `id, product_id, size, color, quantity, sku, barcode, image_url`

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func scanVariation(row interface{ Scan(...any) error }, v *domain.Variation) error {
	return row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Quantity, &v.SKU, &v.Barcode, &v.ImageURL)
}

func (r *InventoryRepository) ListAll(ctx context.Context) ([]domain.Variation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+variationColumns+`
		FROM variations
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.Variation{}
	for rows.Next() {
		var v domain.Variation
		if err := scanVariation(rows, &v); err != nil {
			return nil, err
		}
		items = append(items, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// GetVariation returns nil, nil when the variation does not exist. A nil q reads from
// the pool.
func (r *InventoryRepository) GetVariation(ctx context.Context, q database.Querier, id string) (*domain.Variation, error) {
	if q == nil {
		q = r.db
	}

	v := &domain.Variation{}
	err := scanVariation(q.QueryRowContext(ctx, `
		SELECT `+variationColumns+`
		FROM variations
		WHERE id = $1
	`, id), v)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return v, nil
}

// LockVariations row-locks the given variations inside tx, in id order so concurrent
// checkouts acquire locks consistently.
func (r *InventoryRepository) LockVariations(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.Variation, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+variationColumns+`
		FROM variations
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	locked := make(map[string]domain.Variation, len(ids))
	for rows.Next() {
		var v domain.Variation
		if err := scanVariation(rows, &v); err != nil {
			return nil, err
		}
		locked[v.ID] = v
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return locked, nil
}

// Decrement removes quantity units from stock, failing with ErrInsufficientStock if
// that would take the variation below zero.
func (r *InventoryRepository) Decrement(ctx context.Context, q database.Querier, id string, quantity int) error {
	result, err := q.ExecContext(ctx, `
		UPDATE variations
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`, id, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInsufficientStock
	}

	return nil
}

func (r *InventoryRepository) Restock(ctx context.Context, q database.Querier, id string, quantity int) error {
	if q == nil {
		q = r.db
	}

	result, err := q.ExecContext(ctx, `
		UPDATE variations
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
	`, id, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.NotFound("variation")
	}

	return nil
}

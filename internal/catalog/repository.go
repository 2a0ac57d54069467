// Package catalog reads published product data: products, their variations and
// their pricing rules. Catalog authoring lives elsewhere.
package catalog

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Reader interface {
	Variation(ctx context.Context, id string) (*domain.Variation, error)
	Products(ctx context.Context, q database.Querier, ids []string) (map[string]domain.Product, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Variation returns nil, nil when id is unknown.
func (r *Repository) Variation(ctx context.Context, id string) (*domain.Variation, error) {
	v := &domain.Variation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, size, color, quantity, sku, barcode, image_url
		FROM variations
		WHERE id = $1
	`, id).Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Quantity, &v.SKU, &v.Barcode, &v.ImageURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// Products loads products with their pricing rules in stored position order. A nil
// q reads from the pool.
func (r *Repository) Products(ctx context.Context, q database.Querier, ids []string) (map[string]domain.Product, error) {
	if q == nil {
		q = r.db
	}

	products := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, base_price, published, categories
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.BasePrice, &p.Published, pq.Array(&p.Categories)); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	ruleRows, err := q.QueryContext(ctx, `
		SELECT product_id, id, min_quantity, max_quantity, kind, amount
		FROM pricing_rules
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = ruleRows.Close() }()

	for ruleRows.Next() {
		var productID string
		var rule domain.PricingRule
		if err := ruleRows.Scan(&productID, &rule.ID, &rule.MinQuantity, &rule.MaxQuantity, &rule.Kind, &rule.Amount); err != nil {
			return nil, err
		}
		p, ok := products[productID]
		if !ok {
			continue
		}
		p.PricingRules = append(p.PricingRules, rule)
		products[productID] = p
	}

	if err := ruleRows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID          string `json:"id"`
	CartID      string `json:"cart_id"`
	VariationID string `json:"variation_id"`
	Quantity    int    `json:"quantity"`

	Variation *Variation `json:"variation,omitempty"`
	Product   *Product   `json:"product,omitempty"`

	// Display pricing; the order engine resolves prices again at checkout.
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Cart struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Items     []CartItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EmptyCart is what callers show when a user has no cart row yet.
func EmptyCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}, Subtotal: decimal.Zero}
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) TotalQuantity() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Clone returns a deep copy of the cart's item slice so callers can derive new snapshots.
func (c Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

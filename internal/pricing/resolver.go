// Package pricing resolves the unit price a product sells at for a given quantity.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ResolvePrice returns the unit price of product at quantity. Rules are scanned in
// stored order and the first bracket containing quantity wins; overlapping rules past
// the first match are ignored. Without a match the base price applies.
func ResolvePrice(product domain.Product, quantity int) decimal.Decimal {
	for _, rule := range product.PricingRules {
		if !rule.Contains(quantity) {
			continue
		}
		switch rule.Kind {
		case domain.PricingRuleFixed:
			return rule.Amount.Round(2)
		case domain.PricingRulePercentage:
			factor := decimal.NewFromInt(1).Sub(rule.Amount.Div(hundred))
			if factor.IsNegative() {
				factor = decimal.Zero
			}
			return product.BasePrice.Mul(factor).Round(2)
		}
	}
	return product.BasePrice.Round(2)
}

// LineTotal is unitPrice × quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// PriceCart fills the display pricing of every item that has its product loaded and
// sets the cart subtotal.
func PriceCart(cart *domain.Cart) {
	subtotal := decimal.Zero
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.Product == nil {
			continue
		}
		item.UnitPrice = ResolvePrice(*item.Product, item.Quantity)
		item.LineTotal = LineTotal(item.UnitPrice, item.Quantity)
		subtotal = subtotal.Add(item.LineTotal)
	}
	cart.Subtotal = subtotal
}

package domain

import "github.com/shopspring/decimal"

type PricingRuleKind string

const (
	PricingRuleFixed      PricingRuleKind = "fixed"
	PricingRulePercentage PricingRuleKind = "percentage"
)

// PricingRule overrides a product's unit price for quantities in [MinQuantity, MaxQuantity].
// MaxQuantity of zero leaves the bracket open-ended. For percentage rules Amount is a
// percent off the base price; for fixed rules it is the unit price.
type PricingRule struct {
	ID          string          `json:"id"`
	MinQuantity int             `json:"min_quantity"`
	MaxQuantity int             `json:"max_quantity"`
	Kind        PricingRuleKind `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
}

func (r PricingRule) Contains(quantity int) bool {
	if quantity < r.MinQuantity {
		return false
	}
	return r.MaxQuantity == 0 || quantity <= r.MaxQuantity
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	Published    bool            `json:"published"`
	Categories   []string        `json:"categories"`
	PricingRules []PricingRule   `json:"pricing_rules,omitempty"`
}

// Variation is a single purchasable SKU. Quantity is the on-hand stock.
type Variation struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
	SKU       string `json:"sku"`
	Barcode   string `json:"barcode,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

package inventory

import (
	"context"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// CheckAvailability returns nil when variation has at least requested units on hand,
// otherwise an ItemUnavailable error carrying the on-hand quantity.
func CheckAvailability(variation domain.Variation, requested int) error {
	if requested > variation.Quantity {
		return domain.ItemUnavailable(variation.ID, variation.Quantity)
	}
	return nil
}

// Guard checks requested quantities against current stock.
type Guard struct {
	repo *InventoryRepository
}

func NewGuard(repo *InventoryRepository) *Guard {
	return &Guard{repo: repo}
}

// Check reads the live on-hand quantity through q. Pass a transaction locked with
// LockVariations to make the answer authoritative until commit.
func (g *Guard) Check(ctx context.Context, q database.Querier, variationID string, requested int) error {
	variation, err := g.repo.GetVariation(ctx, q, variationID)
	if err != nil {
		return err
	}
	if variation == nil {
		return domain.NotFound("variation")
	}
	return CheckAvailability(*variation, requested)
}

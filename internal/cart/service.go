// Package cart implements the server-side cart: one cart per user, one line per
// variation. Every mutation returns the complete cart as it stands afterwards.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

// fetchTimeout bounds a cache-miss load shared by concurrent Fetch callers.
const fetchTimeout = 5 * time.Second

type Store struct {
	repo    *CartRepository
	catalog catalog.Reader
	cache   Cache
	logger  *slog.Logger
	sfg     singleflight.Group

	loadCart func(ctx context.Context, userID string) (*domain.Cart, error)
}

func NewStore(repo *CartRepository, reader catalog.Reader, cache Cache, logger *slog.Logger) *Store {
	if cache == nil {
		cache = NopCache{}
	}
	s := &Store{
		repo:    repo,
		catalog: reader,
		cache:   cache,
		logger:  logger,
	}
	s.loadCart = s.load
	return s
}

// AddItem increments the user's line for variationID by quantity, creating the cart
// and the line as needed. A non-empty idempotencyKey that was already applied to this
// cart makes the call a no-op that returns the current cart.
func (s *Store) AddItem(ctx context.Context, userID, variationID string, quantity int, idempotencyKey string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if quantity < 1 {
		return nil, domain.InvalidQuantity(quantity)
	}

	// A replay is answered before any stock check, which may no longer pass.
	if idempotencyKey != "" {
		applied, err := s.repo.MutationApplied(ctx, userID, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("check mutation: %w", err)
		}
		if applied {
			s.logger.Info("replayed cart mutation ignored", "user_id", userID, "idempotency_key", idempotencyKey)
			return s.afterMutation(ctx, userID)
		}
	}

	variation, err := s.catalog.Variation(ctx, variationID)
	if err != nil {
		return nil, fmt.Errorf("load variation: %w", err)
	}
	if variation == nil {
		return nil, domain.NotFound("variation")
	}
	// Soft check on the requested amount only; the cumulative line is checked at checkout.
	if err := inventory.CheckAvailability(*variation, quantity); err != nil {
		return nil, err
	}

	err = database.InTx(ctx, s.repo.DB(), sql.LevelReadCommitted, func(tx *sql.Tx) error {
		cartID, err := s.repo.EnsureCart(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("ensure cart: %w", err)
		}

		if idempotencyKey != "" {
			first, err := s.repo.RecordMutation(ctx, tx, cartID, idempotencyKey)
			if err != nil {
				return fmt.Errorf("record mutation: %w", err)
			}
			if !first {
				s.logger.Info("replayed cart mutation ignored", "user_id", userID, "idempotency_key", idempotencyKey)
				return nil
			}
		}

		if err := s.repo.UpsertItem(ctx, tx, cartID, variationID, quantity); err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cart item added", "user_id", userID, "variation_id", variationID, "quantity", quantity)
	return s.afterMutation(ctx, userID)
}

// UpdateItemQuantity sets a line's quantity. Zero is rejected; removal goes through
// RemoveItem.
func (s *Store) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if quantity < 1 {
		return nil, domain.InvalidQuantity(quantity)
	}

	variation, err := s.repo.OwnedItem(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("load cart item: %w", err)
	}
	if variation == nil {
		return nil, domain.NotFound("cart item")
	}
	if err := inventory.CheckAvailability(*variation, quantity); err != nil {
		return nil, err
	}

	updated, err := s.repo.SetQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	if !updated {
		return nil, domain.NotFound("cart item")
	}

	s.logger.Info("cart item updated", "user_id", userID, "item_id", itemID, "quantity", quantity)
	return s.afterMutation(ctx, userID)
}

// RemoveItem deletes a line. Removing an absent line is not an error.
func (s *Store) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	if err := s.repo.DeleteItem(ctx, userID, itemID); err != nil {
		return nil, fmt.Errorf("delete cart item: %w", err)
	}

	s.logger.Info("cart item removed", "user_id", userID, "item_id", itemID)
	return s.afterMutation(ctx, userID)
}

func (s *Store) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	if err := s.repo.DeleteAllItems(ctx, nil, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	s.logger.Info("cart cleared", "user_id", userID)
	return s.afterMutation(ctx, userID)
}

// Fetch returns the user's cart, serving from the read cache when possible. It fails
// with NotFound when the user never created a cart. Concurrent misses for one user
// share a single load that does not depend on any one caller staying connected.
func (s *Store) Fetch(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	ch := s.sfg.DoChan(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.readThrough(ctx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Cart), nil
	}
}

func (s *Store) readThrough(ctx context.Context, userID string) (*domain.Cart, error) {
	cached, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("cart cache read failed", "error", err, "user_id", userID)
	}

	generation, genErr := s.cache.Generation(ctx, userID)
	if genErr != nil {
		s.logger.Warn("cart cache generation read failed", "error", genErr, "user_id", userID)
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, domain.NotFound("cart")
	}

	if genErr == nil {
		stored, err := s.cache.SetIfGeneration(ctx, userID, generation, cart)
		switch {
		case err != nil:
			s.logger.Warn("cart cache write failed", "error", err, "user_id", userID)
		case !stored:
			s.logger.Debug("cart changed during load, not cached", "user_id", userID)
		}
	}
	return cart, nil
}

// Invalidate drops the cached copy of the user's cart and makes any load already in
// flight unable to cache what it read.
func (s *Store) Invalidate(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("cart cache invalidate failed", "error", err, "user_id", userID)
	}
}

func (s *Store) afterMutation(ctx context.Context, userID string) (*domain.Cart, error) {
	s.Invalidate(ctx, userID)

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return domain.EmptyCart(userID), nil
	}
	return cart, nil
}

func (s *Store) load(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.Load(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil {
		return nil, nil
	}
	if err := AttachProducts(ctx, s.catalog, nil, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// AttachProducts joins every line to its product and fills display pricing.
func AttachProducts(ctx context.Context, reader catalog.Reader, q database.Querier, cart *domain.Cart) error {
	ids := make([]string, 0, len(cart.Items))
	seen := make(map[string]bool, len(cart.Items))
	for _, item := range cart.Items {
		if item.Variation == nil || seen[item.Variation.ProductID] {
			continue
		}
		seen[item.Variation.ProductID] = true
		ids = append(ids, item.Variation.ProductID)
	}

	products, err := reader.Products(ctx, q, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		if item.Variation == nil {
			continue
		}
		if p, ok := products[item.Variation.ProductID]; ok {
			item.Product = &p
		}
	}

	pricing.PriceCart(cart)
	return nil
}

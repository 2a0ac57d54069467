package cartclient

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

// Command pairs an optimistic local change with the server call that makes it real.
// Apply receives a private copy and returns the predicted cart. If Call fails the
// cache compensates by restoring the cart as it was before Apply.
type Command struct {
	Name  string
	Apply func(domain.Cart) domain.Cart
	Call  func(ctx context.Context) (*domain.Cart, error)
}

// Cache holds the last known cart for one user. Readers get immutable snapshots;
// every change produces a new snapshot and a new version.
type Cache struct {
	api      API
	logger   *slog.Logger
	onChange func(domain.Cart)

	mu      sync.Mutex
	cart    domain.Cart
	version uint64
}

type CacheOption func(*Cache)

// WithOnChange registers a callback that receives every new snapshot.
func WithOnChange(fn func(domain.Cart)) CacheOption {
	return func(c *Cache) { c.onChange = fn }
}

func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

func NewCache(api API, opts ...CacheOption) *Cache {
	c := &Cache{
		api:    api,
		logger: slog.Default(),
		cart:   *domain.EmptyCart(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Snapshot() domain.Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.Clone()
}

func (c *Cache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Refresh replaces the local copy with the server cart.
func (c *Cache) Refresh(ctx context.Context) (domain.Cart, error) {
	server, err := c.api.Cart(ctx)
	if err != nil {
		return c.Snapshot(), err
	}
	return c.replace(*server), nil
}

// Execute applies cmd optimistically, then reconciles with the server result. On
// success the server cart wins. On failure the pre-mutation snapshot is restored
// when nothing newer has been applied meanwhile; otherwise the cache resyncs from
// the server, since the newer snapshot may have been built on the failed change.
func (c *Cache) Execute(ctx context.Context, cmd Command) (domain.Cart, error) {
	c.mu.Lock()
	before := c.cart
	c.cart = cmd.Apply(before.Clone())
	c.version++
	applied := c.version
	optimistic := c.cart.Clone()
	c.mu.Unlock()
	c.notify(optimistic)

	server, err := cmd.Call(ctx)
	if err == nil {
		return c.replace(*server), nil
	}

	c.mu.Lock()
	if c.version == applied {
		c.cart = before
		c.version++
		restored := c.cart.Clone()
		c.mu.Unlock()
		c.notify(restored)
		c.logger.Debug("cart mutation reverted", "command", cmd.Name, "error", err)
		return restored, err
	}
	c.mu.Unlock()

	c.logger.Debug("cart mutation failed behind a newer change, resyncing", "command", cmd.Name, "error", err)
	if _, rerr := c.Refresh(ctx); rerr != nil {
		c.logger.Warn("cart resync failed", "error", rerr)
	}
	return c.Snapshot(), err
}

func (c *Cache) AddItem(ctx context.Context, variationID string, quantity int) (domain.Cart, error) {
	key := uuid.NewString()
	return c.Execute(ctx, Command{
		Name: "add_item",
		Apply: func(cart domain.Cart) domain.Cart {
			for i := range cart.Items {
				if cart.Items[i].VariationID == variationID {
					cart.Items[i].Quantity += quantity
					return reprice(cart)
				}
			}
			cart.Items = append(cart.Items, domain.CartItem{
				ID:          "pending-" + variationID,
				CartID:      cart.ID,
				VariationID: variationID,
				Quantity:    quantity,
			})
			return reprice(cart)
		},
		Call: func(ctx context.Context) (*domain.Cart, error) {
			return c.api.AddItem(ctx, variationID, quantity, key)
		},
	})
}

func (c *Cache) UpdateQuantity(ctx context.Context, itemID string, quantity int) (domain.Cart, error) {
	return c.Execute(ctx, Command{
		Name: "update_quantity",
		Apply: func(cart domain.Cart) domain.Cart {
			for i := range cart.Items {
				if cart.Items[i].ID == itemID {
					cart.Items[i].Quantity = quantity
				}
			}
			return reprice(cart)
		},
		Call: func(ctx context.Context) (*domain.Cart, error) {
			return c.api.UpdateItemQuantity(ctx, itemID, quantity)
		},
	})
}

func (c *Cache) RemoveItem(ctx context.Context, itemID string) (domain.Cart, error) {
	return c.Execute(ctx, Command{
		Name: "remove_item",
		Apply: func(cart domain.Cart) domain.Cart {
			kept := cart.Items[:0]
			for _, item := range cart.Items {
				if item.ID != itemID {
					kept = append(kept, item)
				}
			}
			cart.Items = kept
			return reprice(cart)
		},
		Call: func(ctx context.Context) (*domain.Cart, error) {
			return c.api.RemoveItem(ctx, itemID)
		},
	})
}

func (c *Cache) Clear(ctx context.Context) (domain.Cart, error) {
	return c.Execute(ctx, Command{
		Name: "clear",
		Apply: func(cart domain.Cart) domain.Cart {
			cart.Items = []domain.CartItem{}
			return reprice(cart)
		},
		Call: func(ctx context.Context) (*domain.Cart, error) {
			return c.api.Clear(ctx)
		},
	})
}

func (c *Cache) replace(server domain.Cart) domain.Cart {
	c.mu.Lock()
	c.cart = server.Clone()
	c.version++
	snapshot := c.cart.Clone()
	c.mu.Unlock()
	c.notify(snapshot)
	return snapshot
}

func (c *Cache) notify(cart domain.Cart) {
	if c.onChange != nil {
		c.onChange(cart)
	}
}

func reprice(cart domain.Cart) domain.Cart {
	pricing.PriceCart(&cart)
	return cart
}

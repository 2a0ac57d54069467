package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/inventory"
)

// Ledger is the view of the store a checkout sees inside its transaction.
type Ledger interface {
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	// LockCart returns the user's cart with products attached, or nil if none exists.
	LockCart(ctx context.Context, userID string) (*domain.Cart, error)
	LockVariations(ctx context.Context, ids []string) (map[string]domain.Variation, error)
	DecrementStock(ctx context.Context, variationID string, quantity int) error
	RestoreStock(ctx context.Context, variationID string, quantity int) error
	InsertOrder(ctx context.Context, order *domain.Order, idempotencyKey string) error
	DrainCart(ctx context.Context, cartID string) error
	LockOrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, bool, error)
	SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// UnitOfWork runs fn atomically at serializable isolation. Serialization failures
// surface as errors database.IsSerializationFailure recognises.
type UnitOfWork interface {
	Serializable(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error
}

type SQLUnitOfWork struct {
	db      *sql.DB
	carts   *cart.CartRepository
	catalog catalog.Reader
	stock   *inventory.InventoryRepository
	orders  *OrderRepository
}

func NewSQLUnitOfWork(db *sql.DB, carts *cart.CartRepository, reader catalog.Reader, stock *inventory.InventoryRepository, orders *OrderRepository) *SQLUnitOfWork {
	return &SQLUnitOfWork{db: db, carts: carts, catalog: reader, stock: stock, orders: orders}
}

func (u *SQLUnitOfWork) Serializable(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error {
	return database.InTx(ctx, u.db, sql.LevelSerializable, func(tx *sql.Tx) error {
		return fn(ctx, &sqlLedger{tx: tx, u: u})
	})
}

type sqlLedger struct {
	tx *sql.Tx
	u  *SQLUnitOfWork
}

func (l *sqlLedger) FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	return l.u.orders.FindByIdempotencyKey(ctx, l.tx, userID, key)
}

func (l *sqlLedger) LockCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cartID, err := l.u.carts.LockCart(ctx, l.tx, userID)
	if err != nil || cartID == "" {
		return nil, err
	}

	c, err := l.u.carts.Load(ctx, l.tx, userID)
	if err != nil || c == nil {
		return c, err
	}

	if err := cart.AttachProducts(ctx, l.u.catalog, l.tx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *sqlLedger) LockVariations(ctx context.Context, ids []string) (map[string]domain.Variation, error) {
	return l.u.stock.LockVariations(ctx, l.tx, ids)
}

func (l *sqlLedger) DecrementStock(ctx context.Context, variationID string, quantity int) error {
	err := l.u.stock.Decrement(ctx, l.tx, variationID, quantity)
	if errors.Is(err, inventory.ErrInsufficientStock) {
		return fmt.Errorf("decrement %s: %w", variationID, err)
	}
	return err
}

func (l *sqlLedger) RestoreStock(ctx context.Context, variationID string, quantity int) error {
	return l.u.stock.Restock(ctx, l.tx, variationID, quantity)
}

func (l *sqlLedger) InsertOrder(ctx context.Context, order *domain.Order, idempotencyKey string) error {
	return l.u.orders.Insert(ctx, l.tx, order, idempotencyKey)
}

func (l *sqlLedger) DrainCart(ctx context.Context, cartID string) error {
	return l.u.carts.Drain(ctx, l.tx, cartID)
}

func (l *sqlLedger) LockOrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, bool, error) {
	return l.u.orders.LockStatus(ctx, l.tx, orderID)
}

func (l *sqlLedger) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	return l.u.orders.SetStatus(ctx, l.tx, orderID, status)
}

func (l *sqlLedger) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return l.u.orders.GetByID(ctx, l.tx, "", orderID)
}

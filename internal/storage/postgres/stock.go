package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stock"
)

const (
	// The row lock taken by the subquery serialises concurrent decrements of
	// the same product; the old value is returned alongside the new one.
	decrementStockSQL = `UPDATE products p
		SET stock_quantity = GREATEST(old.stock_quantity - $2, 0),
			in_stock = old.stock_quantity > $2,
			updated_at = now()
		FROM (SELECT id, stock_quantity FROM products WHERE id = $1 FOR UPDATE) old
		WHERE p.id = old.id
		RETURNING old.stock_quantity, p.stock_quantity`

	decrementStockStrictSQL = `UPDATE products
		SET stock_quantity = stock_quantity - $2,
			in_stock = stock_quantity - $2 > 0,
			updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity + $2, stock_quantity`

	getStockSQL = `SELECT stock_quantity FROM products WHERE id = $1`
)

var _ stock.Store = (*StockStore)(nil)

// StockStore applies atomic stock decrements.
type StockStore struct {
	db DBTX
}

// NewStockStore returns a StockStore that uses the given pool or
// transaction.
func NewStockStore(db DBTX) *StockStore {
	return &StockStore{db: db}
}

// Decrement sets stock to max(0, stock - quantity) in a single statement.
func (s *StockStore) Decrement(ctx context.Context, productID string, quantity int) (stock.Result, error) {
	res := stock.Result{ProductID: productID}
	err := s.db.QueryRow(ctx, decrementStockSQL, productID, quantity).Scan(&res.Previous, &res.Current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return res, &product.NotFoundError{ProductID: productID}
		}
		return res, fmt.Errorf("decrementing stock of %q: %w", productID, err)
	}
	if quantity > res.Previous {
		res.Shortfall = quantity - res.Previous
	}
	return res, nil
}

// DecrementStrict decrements only when enough stock is available.
func (s *StockStore) DecrementStrict(ctx context.Context, productID string, quantity int) (stock.Result, error) {
	res := stock.Result{ProductID: productID}
	err := s.db.QueryRow(ctx, decrementStockStrictSQL, productID, quantity).Scan(&res.Previous, &res.Current)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return res, fmt.Errorf("decrementing stock of %q: %w", productID, err)
	}

	// Either the product is missing or it has too few units.
	var available int
	if err := s.db.QueryRow(ctx, getStockSQL, productID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return res, &product.NotFoundError{ProductID: productID}
		}
		return res, fmt.Errorf("reading stock of %q: %w", productID, err)
	}
	return res, &stock.InsufficientStockError{
		ProductID: productID,
		Requested: quantity,
		Available: available,
	}
}

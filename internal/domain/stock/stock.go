// Package stock applies purchased quantities to product inventory.
package stock

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ErrInsufficientStock is wrapped by InsufficientStockError.
var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError is returned in strict mode when a product does not
// have enough units to cover a line.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Line is a purchased quantity of a single product.
type Line struct {
	ProductID string
	Quantity  int
}

// Result describes the stock change applied to one product.
type Result struct {
	ProductID string
	Previous  int
	Current   int
	// Shortfall is the number of units sold beyond what was in stock.
	Shortfall int
}

// Store performs single-statement stock updates.
type Store interface {
	// Decrement sets stock to max(0, stock - quantity) and returns the
	// quantities before and after.
	Decrement(ctx context.Context, productID string, quantity int) (Result, error)
	// DecrementStrict only decrements when stock >= quantity and returns
	// *InsufficientStockError otherwise.
	DecrementStrict(ctx context.Context, productID string, quantity int) (Result, error)
}

// Reconciler applies purchased lines to inventory.
type Reconciler struct {
	store  Store
	strict bool
}

// NewReconciler creates a Reconciler. In strict mode overselling fails the
// reconciliation instead of clamping stock at zero.
func NewReconciler(store Store, strict bool) *Reconciler {
	return &Reconciler{store: store, strict: strict}
}

// Reconcile decrements stock for every line. Quantities of the same product
// are merged and products are updated in id order so concurrent
// reconciliations lock rows consistently.
func (r *Reconciler) Reconcile(ctx context.Context, lines []Line) ([]Result, error) {
	merged := Merge(lines)
	results := make([]Result, 0, len(merged))

	for _, line := range merged {
		var (
			res Result
			err error
		)
		if r.strict {
			res, err = r.store.DecrementStrict(ctx, line.ProductID, line.Quantity)
		} else {
			res, err = r.store.Decrement(ctx, line.ProductID, line.Quantity)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decrement %s", line.ProductID)
		}

		if res.Shortfall > 0 {
			zctx.From(ctx).Warn("Product oversold",
				zap.String("product_id", res.ProductID),
				zap.Int("requested", line.Quantity),
				zap.Int("previous", res.Previous),
				zap.Int("shortfall", res.Shortfall),
			)
		}
		results = append(results, res)
	}

	return results, nil
}

// Merge sums quantities per product, drops non-positive lines and sorts the
// result by product id.
func Merge(lines []Line) []Line {
	totals := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		totals[l.ProductID] += l.Quantity
	}

	out := make([]Line, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	slices.SortFunc(out, func(a, b Line) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return out
}

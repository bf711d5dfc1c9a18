package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Evaluator resolves coupon codes through a Finder and applies Evaluate.
type Evaluator struct {
	coupons Finder
	now     func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Finder.
func NewEvaluator(coupons Finder) *Evaluator {
	return &Evaluator{coupons: coupons, now: time.Now}
}

// Evaluate looks up code among active coupons and computes its discount on
// subtotal. Repeated calls with the same inputs return the same result.
func (e *Evaluator) Evaluate(ctx context.Context, code string, subtotal decimal.Decimal) (Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Discount{}, ErrNotFound
	}

	c, err := e.coupons.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Discount{}, ErrNotFound
		}
		return Discount{}, errors.Wrap(err, "lookup coupon")
	}

	return Evaluate(c, subtotal, e.now())
}

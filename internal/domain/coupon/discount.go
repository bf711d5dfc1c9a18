package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluate computes the discount c grants on subtotal at time now. It has no
// side effects: the usage counter is only touched at settlement.
//
// Checks run in a fixed order: active, expiry, usage cap, minimum order.
// Percentage discounts are rounded to whole currency units and every
// discount is clamped to [0, subtotal].
func Evaluate(c *Coupon, subtotal decimal.Decimal, now time.Time) (Discount, error) {
	if !c.Active {
		return Discount{}, ErrNotFound
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return Discount{}, ErrExpired
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return Discount{}, ErrUsageExceeded
	}
	if c.MinOrderAmount != nil && c.MinOrderAmount.GreaterThan(subtotal) {
		return Discount{}, &MinimumNotMetError{Minimum: *c.MinOrderAmount}
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.Value).Div(hundred).Round(0)
	case DiscountFixed:
		amount = c.Value
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}

	return Discount{
		Code:   c.Code,
		Amount: clamp(amount, subtotal),
	}, nil
}

// clamp bounds amount to [0, ceiling].
func clamp(amount, ceiling decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, ceiling)
}

package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the order subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a flat amount off the order, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrNotFound is returned when no active coupon matches the code.
	ErrNotFound = errors.New("invalid coupon code")
	// ErrExpired is returned when the coupon expiry is in the past.
	ErrExpired = errors.New("coupon has expired")
	// ErrUsageExceeded is returned when the coupon reached its use cap.
	ErrUsageExceeded = errors.New("coupon usage limit reached")
	// ErrMinimumNotMet is wrapped by MinimumNotMetError.
	ErrMinimumNotMet = errors.New("minimum order amount not met")
	// ErrInvalidCoupon is returned for malformed coupon definitions.
	ErrInvalidCoupon = errors.New("invalid coupon")
	// ErrDuplicateCode is returned when another coupon uses the same code.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// MinimumNotMetError reports the minimum order amount the subtotal fell short of.
type MinimumNotMetError struct {
	Minimum decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("minimum order amount is %s", e.Minimum.StringFixed(2))
}

func (e *MinimumNotMetError) Unwrap() error { return ErrMinimumNotMet }

// Coupon is a discount code definition together with its usage counter.
type Coupon struct {
	ID             string
	Code           string
	DiscountType   DiscountType
	Value          decimal.Decimal
	MinOrderAmount *decimal.Decimal
	MaxUses        *int
	UsedCount      int
	ExpiresAt      *time.Time
	Active         bool
	CreatedAt      time.Time
}

// Validate checks the coupon definition before it is stored.
func (c *Coupon) Validate() error {
	switch {
	case c.Code == "":
		return errors.Wrap(ErrInvalidCoupon, "code required")
	case !c.DiscountType.Valid():
		return errors.Wrapf(ErrInvalidCoupon, "unsupported discount type %q", c.DiscountType)
	case !c.Value.IsPositive():
		return errors.Wrap(ErrInvalidCoupon, "discount value must be positive")
	case c.DiscountType == DiscountPercentage && c.Value.GreaterThan(hundred):
		return errors.Wrap(ErrInvalidCoupon, "percentage cannot exceed 100")
	case c.MinOrderAmount != nil && c.MinOrderAmount.IsNegative():
		return errors.Wrap(ErrInvalidCoupon, "minimum order amount cannot be negative")
	case c.MaxUses != nil && *c.MaxUses <= 0:
		return errors.Wrap(ErrInvalidCoupon, "max uses must be positive")
	}
	return nil
}

// Discount is the outcome of a successful coupon evaluation.
type Discount struct {
	Code   string
	Amount decimal.Decimal
}

// NormalizeCode returns the canonical upper-case form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Finder looks up active coupons by code, case-insensitively.
type Finder interface {
	FindActiveByCode(ctx context.Context, code string) (*Coupon, error)
}

// Repository provides coupon persistence for evaluation and administration.
type Repository interface {
	Finder
	// ListCodes returns every stored code, active or not.
	ListCodes(ctx context.Context) ([]string, error)
	// IncrementUses bumps used_count unless the cap has been reached, in which
	// case it returns ErrUsageExceeded.
	IncrementUses(ctx context.Context, code string) error
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

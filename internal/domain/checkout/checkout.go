// Package checkout implements the server-side checkout flow: address
// selection, order summary, payment method choice and settlement.
package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stock"
)

var (
	// ErrUnauthenticated is returned when checkout is entered without a user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrEmptyCart is returned when checkout is entered with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidQuantity is returned for cart lines with quantity < 1.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrWrongStage is wrapped by StageError.
	ErrWrongStage = errors.New("operation not allowed at this checkout stage")
	// ErrNoAddress is returned when no shipping address is selected.
	ErrNoAddress = errors.New("shipping address required")
	// ErrCODUnavailable is returned when a cart item cannot be paid on delivery.
	ErrCODUnavailable = errors.New("cash on delivery is not available for some items")
	// ErrPaymentMethod is returned when the settlement call does not match
	// the selected payment method.
	ErrPaymentMethod = errors.New("payment method mismatch")
	// ErrSessionBusy is returned when another request holds the session.
	ErrSessionBusy = errors.New("checkout session is busy, retry shortly")
	// ErrPaymentInProgress is returned while an online payment is open.
	ErrPaymentInProgress = errors.New("payment already in progress")
	// ErrIntentMismatch is returned when a confirmation does not belong to
	// the session's open payment intent.
	ErrIntentMismatch = errors.New("payment does not match checkout session")
	// ErrAlreadyPlaced is returned when the session already produced an order.
	ErrAlreadyPlaced = errors.New("order already placed")
)

// StageError reports an operation attempted at the wrong stage.
type StageError struct {
	Op    string
	Stage Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s not allowed at %s stage", e.Op, e.Stage)
}

func (e *StageError) Unwrap() error { return ErrWrongStage }

// CartLine is a client-submitted cart entry.
type CartLine struct {
	ProductID string
	Quantity  int
}

// ProductReader loads catalog products.
type ProductReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// AddressReader loads a user's addresses.
type AddressReader interface {
	ListByUser(ctx context.Context, userID string) ([]address.Address, error)
	Get(ctx context.Context, userID, id string) (*address.Address, error)
}

// CouponEvaluator computes coupon discounts without side effects.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.Discount, error)
}

// SessionStore persists checkout sessions.
type SessionStore interface {
	// Get returns ErrSessionNotFound for unknown or expired sessions.
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Lock claims the session for a single writer. It returns ErrSessionBusy
	// while another claim is held. release must be called exactly once.
	Lock(ctx context.Context, id string) (release func(), err error)
}

// OrderWriter inserts orders. A second order for the same checkout
// session or gateway order fails with order.ErrDuplicate.
type OrderWriter interface {
	Create(ctx context.Context, o *order.Order) error
}

// CouponCounter records coupon redemptions.
type CouponCounter interface {
	IncrementUses(ctx context.Context, code string) error
}

// Repositories are the stores settlement writes to, bound to one
// transaction.
type Repositories struct {
	Orders  OrderWriter
	Coupons CouponCounter
	Stock   stock.Store
}

// UnitOfWork runs fn in a single database transaction. The transaction
// commits only if fn returns nil.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when an order does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTotals is returned when the order amounts are inconsistent.
	ErrInvalidTotals = errors.New("order totals are inconsistent")
	// ErrEmptyItems is returned when an order has no line items.
	ErrEmptyItems = errors.New("items required")
	// ErrDuplicate is returned when an order for the same checkout session
	// or gateway payment already exists.
	ErrDuplicate = errors.New("order already exists")
)

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentRazorpay PaymentMethod = "razorpay"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentRazorpay
}

// InitialStatus is the status an order is created with for this method.
// Cash orders wait for confirmation; online orders are paid already.
func (m PaymentMethod) InitialStatus() Status {
	if m == PaymentRazorpay {
		return StatusConfirmed
	}
	return StatusPending
}

// Order is a placed customer order. Items are a snapshot taken at checkout
// and never change; only status and tracking fields are updated later.
type Order struct {
	ID                string
	UserID            string
	CheckoutSessionID string
	Items             []Item
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	Total             decimal.Decimal
	Status            Status
	PaymentMethod     PaymentMethod
	CouponCode        string
	ShippingAddress   string
	Phone             string
	GatewayOrderID    string
	GatewayPaymentID  string
	TrackingNumber    string
	TrackingLink      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Item is a purchased product snapshot.
type Item struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

// LineTotal returns price * quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal sums the line totals of items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Validate checks the order before it is persisted.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrEmptyItems
	}
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			return errors.Errorf("invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}
	}
	if !o.PaymentMethod.Valid() {
		return errors.Errorf("invalid payment method %q", o.PaymentMethod)
	}
	if !o.Status.Valid() {
		return errors.Wrapf(ErrInvalidStatus, "%q", o.Status)
	}
	switch {
	case o.Discount.IsNegative():
		return errors.Wrap(ErrInvalidTotals, "negative discount")
	case o.Total.IsNegative():
		return errors.Wrap(ErrInvalidTotals, "negative total")
	case !o.Total.Equal(o.Subtotal.Sub(o.Discount)):
		return errors.Wrapf(ErrInvalidTotals, "total %s != %s - %s", o.Total, o.Subtotal, o.Discount)
	}
	return nil
}

// Filter narrows admin order listings.
type Filter struct {
	Status Status
	Limit  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateTracking(ctx context.Context, id, number, link string) error
}

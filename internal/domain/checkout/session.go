package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// Stage is a step of the checkout flow.
type Stage string

const (
	StageAddress Stage = "address"
	StageSummary Stage = "summary"
	StagePayment Stage = "payment"
	StagePlaced  Stage = "placed"
)

// Line is a cart line with the product snapshot taken when checkout
// started.
type Line struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Image        string          `json:"image,omitempty"`
	CODAvailable bool            `json:"cod_available"`
}

// Session is the server-side state of one checkout attempt.
type Session struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Stage         Stage               `json:"stage"`
	Lines         []Line              `json:"lines"`
	AddressID     string              `json:"address_id,omitempty"`
	CouponCode    string              `json:"coupon_code,omitempty"`
	Discount      decimal.Decimal     `json:"discount"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	CODAllowed    bool                `json:"cod_allowed"`
	// IntentID is the gateway order id of the open online payment.
	IntentID   string    `json:"intent_id,omitempty"`
	Processing bool      `json:"processing"`
	OrderID    string    `json:"order_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Subtotal sums line prices.
func (s *Session) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range s.Lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Total is the subtotal less the coupon discount, never negative.
func (s *Session) Total() decimal.Decimal {
	total := s.Subtotal().Sub(s.Discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Items converts the snapshot lines to order items.
func (s *Session) Items() []order.Item {
	items := make([]order.Item, len(s.Lines))
	for i, l := range s.Lines {
		items[i] = order.Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
			Image:     l.Image,
		}
	}
	return items
}

// ProductIDs returns the ids of the cart products in cart order.
func (s *Session) ProductIDs() []string {
	ids := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		ids[i] = l.ProductID
	}
	return ids
}

func (s *Session) clearCoupon() {
	s.CouponCode = ""
	s.Discount = decimal.Zero
}

func (s *Session) resetPayment() {
	s.Processing = false
	s.IntentID = ""
}

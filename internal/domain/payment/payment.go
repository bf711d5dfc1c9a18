// Package payment defines the online payment gateway contract and the
// verification of signed payment confirmations.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when an intent request does not name one.
const DefaultCurrency = "INR"

var (
	// ErrNotConfigured is returned when gateway credentials are missing.
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrSignatureMismatch is returned when a confirmation signature does
	// not match the expected digest.
	ErrSignatureMismatch = errors.New("payment verification failed")
	// ErrInvalidAmount is returned for non-positive intent amounts.
	ErrInvalidAmount = errors.New("payment amount must be positive")
)

// GatewayError is a rejection reported by the payment gateway.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("payment gateway: status %d", e.StatusCode)
	}
	return fmt.Sprintf("payment gateway: %s", e.Description)
}

// IntentRequest asks the gateway to reserve an amount.
type IntentRequest struct {
	// Amount in major currency units.
	Amount   decimal.Decimal
	Currency string
	Receipt  string
}

// Intent is a gateway-side payment reservation.
type Intent struct {
	OrderID  string
	KeyID    string
	Amount   decimal.Decimal
	Currency string
}

// Confirmation is the signed payment result returned by the gateway's
// checkout widget.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Gateway creates payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// Confirmer verifies signed confirmations.
type Confirmer interface {
	Verify(c Confirmation) error
}

// MinorUnits converts a major-unit amount to the gateway's smallest
// currency unit, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks HMAC-SHA256 signatures over "order_id|payment_id".
type Verifier struct {
	secret []byte
}

var _ Confirmer = (*Verifier)(nil)

// NewVerifier creates a Verifier keyed by the gateway secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex signature the gateway issues for the pair.
func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify accepts c only if its signature matches exactly.
func (v *Verifier) Verify(c Confirmation) error {
	if len(v.secret) == 0 {
		return ErrNotConfigured
	}
	if c.OrderID == "" || c.PaymentID == "" || c.Signature == "" {
		return ErrSignatureMismatch
	}

	expected := v.Sign(c.OrderID, c.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(c.Signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

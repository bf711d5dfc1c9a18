// Package address manages customer shipping addresses.
package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when an address does not exist or belongs to
// another user.
var ErrNotFound = errors.New("address not found")

// ValidationError reports an invalid address field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Type labels an address.
type Type string

const (
	TypeHome  Type = "home"
	TypeWork  Type = "work"
	TypeOther Type = "other"
)

// Address is a customer shipping address.
type Address struct {
	ID             string
	UserID         string
	FullName       string
	Phone          string
	Pincode        string
	City           string
	State          string
	Locality       string
	Line           string
	Landmark       string
	AlternatePhone string
	Type           Type
	IsDefault      bool
	CreatedAt      time.Time
}

// Validate checks required fields and normalises optional ones.
func (a *Address) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"full_name", a.FullName},
		{"phone", a.Phone},
		{"pincode", a.Pincode},
		{"city", a.City},
		{"state", a.State},
		{"address", a.Line},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "required"}
		}
	}
	if !isPincode(a.Pincode) {
		return &ValidationError{Field: "pincode", Reason: "must be 6 digits"}
	}

	switch a.Type {
	case "":
		a.Type = TypeHome
	case TypeHome, TypeWork, TypeOther:
	default:
		return &ValidationError{Field: "address_type", Reason: "must be home, work or other"}
	}
	return nil
}

// Format renders the single-line shipping address stored on orders.
func (a *Address) Format() string {
	parts := []string{a.FullName, a.Line}
	if a.Locality != "" {
		parts = append(parts, a.Locality)
	}
	parts = append(parts, a.City)
	return strings.Join(parts, ", ") + ", " + a.State + " - " + a.Pincode
}

func isPincode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Repository persists addresses. Implementations clear the default flag on
// the user's other addresses when saving a default one.
type Repository interface {
	// ListByUser returns the user's addresses, default first.
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID, id string) (*Address, error)
	Create(ctx context.Context, a *Address) error
	Update(ctx context.Context, a *Address) error
	Delete(ctx context.Context, userID, id string) error
}

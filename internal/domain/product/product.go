package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrInvalidStock is returned when a stock quantity is negative.
var ErrInvalidStock = errors.New("stock quantity cannot be negative")

// NotFoundError identifies the product that could not be found.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Product represents a catalog item available for purchase.
type Product struct {
	ID            string
	Name          string
	Description   string
	Category      string
	Price         decimal.Decimal
	ImageURL      string
	StockQuantity int
	InStock       bool
	CODAvailable  bool
	CreatedAt     time.Time
}

// StockStatus reports the derived availability of the product.
func (p *Product) StockStatus() StockStatus {
	return StatusOf(p.StockQuantity)
}

// Repository defines catalog reads and inventory administration.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// SetStock overwrites the quantity and derives in_stock from it.
	SetStock(ctx context.Context, id string, quantity int) error
	SetCODAvailable(ctx context.Context, id string, available bool) error
}

package product

// LowStockThreshold is the highest quantity still reported as low stock.
const LowStockThreshold = 10

// StockStatus is the customer-facing availability bucket of a product.
type StockStatus string

const (
	StockOut StockStatus = "out"
	StockLow StockStatus = "low"
	StockIn  StockStatus = "in"
)

// StatusOf maps a stock quantity to its availability bucket.
func StatusOf(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockOut
	case quantity <= LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}

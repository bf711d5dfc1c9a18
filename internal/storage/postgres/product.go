package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, name, description, category, price, image_url,
		stock_quantity, in_stock, cod_available, created_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	setProductStockSQL = `UPDATE products
		SET stock_quantity = $2, in_stock = $2 > 0, updated_at = now()
		WHERE id = $1`

	setProductCODSQL = `UPDATE products SET cod_available = $2, updated_at = now() WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, description, category, price, image_url,
		stock_quantity, in_stock, cod_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7 > 0, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			image_url = EXCLUDED.image_url,
			stock_quantity = EXCLUDED.stock_quantity,
			in_stock = EXCLUDED.in_stock,
			cod_available = EXCLUDED.cod_available,
			updated_at = now()`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db DBTX
}

// NewProductRepository returns a ProductRepository that uses the given
// pool or transaction.
func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns the catalog, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &product.NotFoundError{ProductID: id}
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// SetStock overwrites the stock quantity of a product.
func (r *ProductRepository) SetStock(ctx context.Context, id string, quantity int) error {
	if quantity < 0 {
		return product.ErrInvalidStock
	}
	tag, err := r.db.Exec(ctx, setProductStockSQL, id, quantity)
	if err != nil {
		return fmt.Errorf("setting stock of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &product.NotFoundError{ProductID: id}
	}
	return nil
}

// SetCODAvailable toggles cash on delivery for a product.
func (r *ProductRepository) SetCODAvailable(ctx context.Context, id string, available bool) error {
	tag, err := r.db.Exec(ctx, setProductCODSQL, id, available)
	if err != nil {
		return fmt.Errorf("setting cod flag of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &product.NotFoundError{ProductID: id}
	}
	return nil
}

// Upsert inserts or replaces a catalog product.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.db.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.ImageURL,
		p.StockQuantity, p.CODAvailable,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.ImageURL,
		&p.StockQuantity, &p.InStock, &p.CODAvailable, &p.CreatedAt,
	)
	return p, err
}

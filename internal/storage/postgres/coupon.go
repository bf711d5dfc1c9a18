package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	couponColumns = `id, code, discount_type, discount_value, min_order_amount,
		max_uses, used_count, expires_at, is_active, created_at`

	getActiveCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1) AND is_active`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	listCouponCodesSQL = `SELECT code FROM coupons`

	// The guard makes the increment a compare-and-swap on the usage cap.
	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE UPPER(code) = UPPER($1) AND (max_uses IS NULL OR used_count < max_uses)`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE UPPER(code) = UPPER($1))`

	createCouponSQL = `INSERT INTO coupons (id, code, discount_type, discount_value, min_order_amount,
		max_uses, used_count, expires_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	upsertCouponSQL = `INSERT INTO coupons (id, code, discount_type, discount_value, min_order_amount,
		max_uses, used_count, expires_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			min_order_amount = EXCLUDED.min_order_amount,
			max_uses = EXCLUDED.max_uses,
			expires_at = EXCLUDED.expires_at,
			is_active = EXCLUDED.is_active`

	updateCouponSQL = `UPDATE coupons SET code = $2, discount_type = $3, discount_value = $4,
		min_order_amount = $5, max_uses = $6, expires_at = $7, is_active = $8
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	setCouponActiveSQL = `UPDATE coupons SET is_active = $2 WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db DBTX
}

// NewCouponRepository returns a CouponRepository that uses the given pool
// or transaction.
func NewCouponRepository(db DBTX) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindActiveByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, getActiveCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// ListCodes returns every coupon code.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// IncrementUses records one redemption unless the usage cap is reached.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, couponExistsSQL, code).Scan(&exists); err != nil {
		return fmt.Errorf("checking coupon %q: %w", code, err)
	}
	if !exists {
		return coupon.ErrNotFound
	}
	return coupon.ErrUsageExceeded
}

// List returns every coupon, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a coupon. Codes are unique regardless of case.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.Exec(ctx, createCouponSQL,
		c.ID, c.Code, string(c.DiscountType), c.Value, c.MinOrderAmount,
		c.MaxUses, c.UsedCount, c.ExpiresAt, c.Active, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts a coupon or replaces the definition of the coupon with the
// same code, keeping its id and usage counter.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, string(c.DiscountType), c.Value, c.MinOrderAmount,
		c.MaxUses, c.UsedCount, c.ExpiresAt, c.Active, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update replaces a coupon definition.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.db.Exec(ctx, updateCouponSQL,
		c.ID, c.Code, string(c.DiscountType), c.Value, c.MinOrderAmount,
		c.MaxUses, c.ExpiresAt, c.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// SetActive toggles a coupon.
func (r *CouponRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, setCouponActiveSQL, id, active)
	if err != nil {
		return fmt.Errorf("setting coupon %q active: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.Value, &c.MinOrderAmount,
		&c.MaxUses, &c.UsedCount, &c.ExpiresAt, &c.Active, &c.CreatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, COALESCE(checkout_session_id, ''), items, subtotal, discount_amount, total,
		status, payment_method, COALESCE(coupon_code, ''), shipping_address, phone,
		COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''),
		tracking_number, tracking_link, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (id, user_id, checkout_session_id, items, subtotal,
		discount_amount, total, status, payment_method, coupon_code, shipping_address, phone,
		gateway_order_id, gateway_payment_id, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12,
			NULLIF($13, ''), NULLIF($14, ''), $15, $15)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	updateOrderTrackingSQL = `UPDATE orders SET tracking_number = $2, tracking_link = $3, updated_at = now()
		WHERE id = $1`
)

const defaultListLimit = 200

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository returns an OrderRepository that uses the given pool or
// transaction.
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.db.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.CheckoutSessionID, itemsJSON, o.Subtotal,
		o.Discount, o.Total, string(o.Status), string(o.PaymentMethod), o.CouponCode,
		o.ShippingAddress, o.Phone, o.GatewayOrderID, o.GatewayPaymentID, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicate
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	o.UpdatedAt = o.CreatedAt

	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.Query(ctx, listOrdersSQL, string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus sets the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.db.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdateTracking sets the courier tracking fields.
func (r *OrderRepository) UpdateTracking(ctx context.Context, id, number, link string) error {
	tag, err := r.db.Exec(ctx, updateOrderTrackingSQL, id, number, link)
	if err != nil {
		return fmt.Errorf("updating tracking of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		items         []byte
		status        string
		paymentMethod string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CheckoutSessionID, &items, &o.Subtotal, &o.Discount, &o.Total,
		&status, &paymentMethod, &o.CouponCode, &o.ShippingAddress, &o.Phone,
		&o.GatewayOrderID, &o.GatewayPaymentID,
		&o.TrackingNumber, &o.TrackingLink, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	return o, nil
}

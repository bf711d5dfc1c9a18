package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/checkout"
)

var _ checkout.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork runs checkout settlement in a single transaction.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork returns a UnitOfWork over pool.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// InTx begins a transaction, hands fn repositories bound to it and commits
// if fn succeeds. Any error rolls everything back.
func (u *UnitOfWork) InTx(ctx context.Context, fn func(ctx context.Context, repos checkout.Repositories) error) error {
	return pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, checkout.Repositories{
			Orders:  NewOrderRepository(tx),
			Coupons: NewCouponRepository(tx),
			Stock:   NewStockStore(tx),
		})
	})
}

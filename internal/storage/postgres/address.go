package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/address"
)

const (
	addressColumns = `id, user_id, full_name, phone, pincode, city, state, locality,
		address, landmark, alternate_phone, address_type, is_default, created_at`

	listAddressesByUserSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, created_at`

	getAddressSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

	clearDefaultAddressSQL = `UPDATE addresses SET is_default = FALSE
		WHERE user_id = $1 AND id <> $2 AND is_default`

	createAddressSQL = `INSERT INTO addresses (id, user_id, full_name, phone, pincode, city, state,
		locality, address, landmark, alternate_phone, address_type, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateAddressSQL = `UPDATE addresses SET full_name = $3, phone = $4, pincode = $5, city = $6,
		state = $7, locality = $8, address = $9, landmark = $10, alternate_phone = $11,
		address_type = $12, is_default = $13
		WHERE id = $1 AND user_id = $2`

	deleteAddressSQL = `DELETE FROM addresses WHERE id = $1 AND user_id = $2`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	db DBTX
}

// NewAddressRepository returns an AddressRepository that uses the given
// pool or transaction.
func NewAddressRepository(db DBTX) *AddressRepository {
	return &AddressRepository{db: db}
}

// ListByUser returns the user's addresses, default first.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]address.Address, error) {
	rows, err := r.db.Query(ctx, listAddressesByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

// Get returns one of the user's addresses.
func (r *AddressRepository) Get(ctx context.Context, userID, id string) (*address.Address, error) {
	rows, err := r.db.Query(ctx, getAddressSQL, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}

// Create inserts an address, clearing the user's previous default when a
// is the new default.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := clearDefault(ctx, tx, a); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, createAddressSQL,
			a.ID, a.UserID, a.FullName, a.Phone, a.Pincode, a.City, a.State,
			a.Locality, a.Line, a.Landmark, a.AlternatePhone, string(a.Type), a.IsDefault, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating address: %w", err)
		}
		return nil
	})
}

// Update replaces an address of the user.
func (r *AddressRepository) Update(ctx context.Context, a *address.Address) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := clearDefault(ctx, tx, a); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, updateAddressSQL,
			a.ID, a.UserID, a.FullName, a.Phone, a.Pincode, a.City, a.State,
			a.Locality, a.Line, a.Landmark, a.AlternatePhone, string(a.Type), a.IsDefault,
		)
		if err != nil {
			return fmt.Errorf("updating address %q: %w", a.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return address.ErrNotFound
		}
		return nil
	})
}

// Delete removes an address of the user.
func (r *AddressRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, deleteAddressSQL, id, userID)
	if err != nil {
		return fmt.Errorf("deleting address %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

func clearDefault(ctx context.Context, tx pgx.Tx, a *address.Address) error {
	if !a.IsDefault {
		return nil
	}
	if _, err := tx.Exec(ctx, clearDefaultAddressSQL, a.UserID, a.ID); err != nil {
		return fmt.Errorf("clearing default address: %w", err)
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var (
		a    address.Address
		kind string
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Pincode, &a.City, &a.State, &a.Locality,
		&a.Line, &a.Landmark, &a.AlternatePhone, &kind, &a.IsDefault, &a.CreatedAt,
	)
	a.Type = address.Type(kind)
	return a, err
}

package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const addressColumns = `id, user_id, label, full_name, street_address, city, state, zip_code, phone_number, is_default`

func listAddresses(ctx context.Context, q sqlx.QueryerContext, userID int64) ([]models.Address, error) {
	addrs := []models.Address{}
	err := sqlx.SelectContext(ctx, q, &addrs,
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = $1 ORDER BY id", userID)
	return addrs, err
}

// lockUser takes the row lock that serializes address edits of one user
func lockUser(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, "SELECT id FROM users WHERE id = $1 FOR UPDATE", userID)
	if err == sql.ErrNoRows {
		return apperr.ErrUserNotFound
	}
	return err
}

func clearDefaultAddress(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default", userID)
	return err
}

// AddAddress saves a new address. Marking it default clears the previous default.
func (s *Store) AddAddress(ctx context.Context, userID int64, a models.Address) ([]models.Address, error) {
	var addrs []models.Address
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if a.IsDefault {
			if err := clearDefaultAddress(ctx, tx, userID); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO addresses (user_id, label, full_name, street_address, city, state, zip_code, phone_number, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.ExecContext(ctx, query, userID,
			a.Label, a.FullName, a.StreetAddress, a.City, a.State, a.ZipCode, a.PhoneNumber, a.IsDefault); err != nil {
			return err
		}

		var err error
		addrs, err = listAddresses(ctx, tx, userID)
		return err
	})
	return addrs, err
}

// UpdateAddress applies the non-nil, non-empty fields of patch
func (s *Store) UpdateAddress(ctx context.Context, userID, addressID int64, patch models.AddressPatch) ([]models.Address, error) {
	var addrs []models.Address
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if patch.IsDefault != nil && *patch.IsDefault {
			if err := clearDefaultAddress(ctx, tx, userID); err != nil {
				return err
			}
		}

		query := `
			UPDATE addresses SET
				label = COALESCE(NULLIF($3::text, ''), label),
				full_name = COALESCE(NULLIF($4::text, ''), full_name),
				street_address = COALESCE(NULLIF($5::text, ''), street_address),
				city = COALESCE(NULLIF($6::text, ''), city),
				state = COALESCE(NULLIF($7::text, ''), state),
				zip_code = COALESCE(NULLIF($8::text, ''), zip_code),
				phone_number = COALESCE(NULLIF($9::text, ''), phone_number),
				is_default = COALESCE($10::boolean, is_default)
			WHERE id = $1 AND user_id = $2`
		res, err := tx.ExecContext(ctx, query, addressID, userID,
			patch.Label, patch.FullName, patch.StreetAddress, patch.City,
			patch.State, patch.ZipCode, patch.PhoneNumber, patch.IsDefault)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrAddressNotFound
		}

		addrs, err = listAddresses(ctx, tx, userID)
		return err
	})
	return addrs, err
}

// DeleteAddress removes an address; removing an unknown address is a no-op
func (s *Store) DeleteAddress(ctx context.Context, userID, addressID int64) ([]models.Address, error) {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM addresses WHERE id = $1 AND user_id = $2", addressID, userID); err != nil {
		return nil, translate(err)
	}
	addrs, err := listAddresses(ctx, s.db, userID)
	return addrs, translate(err)
}

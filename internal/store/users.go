package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const userColumns = `id, provider_id, email, name, image_url, created_at, updated_at`

// Serializes all writes for one provider account within the holding transaction.
const lockIdentitySQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

const tombstonedSQL = `SELECT 1 FROM identity_tombstones WHERE provider_id = $1`

// CreateUserIfAbsent inserts the account unless it already exists or was deleted.
// If an earlier out-of-order update created the record, Created only fills the
// fields no update has written yet.
func (s *Store) CreateUserIfAbsent(ctx context.Context, p models.IdentityProfile) (bool, error) {
	var applied bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, lockIdentitySQL, p.ProviderID); err != nil {
			return err
		}

		query := `
			INSERT INTO users (provider_id, email, name, image_url)
			SELECT $1, $2::text, $3::text, $4::text
			WHERE NOT EXISTS (` + tombstonedSQL + `)
			ON CONFLICT (provider_id) DO UPDATE SET
				email = CASE WHEN users.email_updated_at = 'epoch' THEN EXCLUDED.email ELSE users.email END,
				name = CASE WHEN users.name_updated_at = 'epoch' THEN EXCLUDED.name ELSE users.name END,
				image_url = CASE WHEN users.image_updated_at = 'epoch'
					THEN COALESCE(users.image_url, EXCLUDED.image_url) ELSE users.image_url END,
				updated_at = NOW()
			WHERE (users.email_updated_at = 'epoch' AND users.email IS DISTINCT FROM EXCLUDED.email)
				OR (users.name_updated_at = 'epoch' AND users.name IS DISTINCT FROM EXCLUDED.name)
				OR (users.image_updated_at = 'epoch' AND users.image_url IS NULL AND EXCLUDED.image_url IS NOT NULL)`

		res, err := tx.ExecContext(ctx, query,
			p.ProviderID, stringOr(p.Email, ""), stringOr(p.Name, models.DefaultUserName), p.ImageURL)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		applied = n > 0
		return nil
	})
	return applied, err
}

// UpsertUserProfile writes only the fields present in p. The record is created
// when absent and skipped when deleted. Each field keeps the time of its last
// write, so a field is left alone when a newer update already set it while
// the other fields of the same update still apply.
func (s *Store) UpsertUserProfile(ctx context.Context, p models.IdentityProfile) (bool, error) {
	var applied bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, lockIdentitySQL, p.ProviderID); err != nil {
			return err
		}

		query := `
			INSERT INTO users (provider_id, email, name, image_url, email_updated_at, name_updated_at, image_updated_at)
			SELECT $1, COALESCE($2::text, ''), COALESCE($3::text, 'User'), $4::text,
				CASE WHEN $2::text IS NULL THEN 'epoch'::timestamptz ELSE $6::timestamptz END,
				CASE WHEN $3::text IS NULL THEN 'epoch'::timestamptz ELSE $6::timestamptz END,
				CASE WHEN $5::boolean THEN $6::timestamptz ELSE 'epoch'::timestamptz END
			WHERE NOT EXISTS (` + tombstonedSQL + `)
			ON CONFLICT (provider_id) DO UPDATE SET
				email = CASE WHEN $2::text IS NOT NULL AND users.email_updated_at <= $6::timestamptz
					THEN $2::text ELSE users.email END,
				email_updated_at = CASE WHEN $2::text IS NOT NULL AND users.email_updated_at <= $6::timestamptz
					THEN $6::timestamptz ELSE users.email_updated_at END,
				name = CASE WHEN $3::text IS NOT NULL AND users.name_updated_at <= $6::timestamptz
					THEN $3::text ELSE users.name END,
				name_updated_at = CASE WHEN $3::text IS NOT NULL AND users.name_updated_at <= $6::timestamptz
					THEN $6::timestamptz ELSE users.name_updated_at END,
				image_url = CASE WHEN $5::boolean AND users.image_updated_at <= $6::timestamptz
					THEN $4::text ELSE users.image_url END,
				image_updated_at = CASE WHEN $5::boolean AND users.image_updated_at <= $6::timestamptz
					THEN $6::timestamptz ELSE users.image_updated_at END,
				updated_at = NOW()
			WHERE ($2::text IS NOT NULL AND users.email_updated_at <= $6::timestamptz)
				OR ($3::text IS NOT NULL AND users.name_updated_at <= $6::timestamptz)
				OR ($5::boolean AND users.image_updated_at <= $6::timestamptz)`

		res, err := tx.ExecContext(ctx, query,
			p.ProviderID, p.Email, p.Name, p.ImageURL, p.ImageURLSet, p.OccurredAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		applied = n > 0
		return nil
	})
	return applied, err
}

// DeleteUserByProviderID removes the account and records a tombstone so that
// late Created or Updated deliveries cannot resurrect it. The user's reviews go
// with the account, so the rating of every product they reviewed is recomputed
// in the same transaction. Deleting an absent account still records the
// tombstone and is not an error.
func (s *Store) DeleteUserByProviderID(ctx context.Context, providerID string, at time.Time) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, lockIdentitySQL, providerID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO identity_tombstones (provider_id, deleted_at) VALUES ($1, $2)
			ON CONFLICT (provider_id) DO NOTHING`, providerID, at); err != nil {
			return err
		}

		// the row lock keeps new reviews by this user out until the delete commits
		var userID int64
		err := tx.GetContext(ctx, &userID,
			"SELECT id FROM users WHERE provider_id = $1 FOR UPDATE", providerID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		productIDs := []int64{}
		if err := tx.SelectContext(ctx, &productIDs,
			"SELECT DISTINCT product_id FROM reviews WHERE user_id = $1 ORDER BY product_id", userID); err != nil {
			return err
		}
		if len(productIDs) > 0 {
			locked := []int64{}
			if err := tx.SelectContext(ctx, &locked,
				"SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE", pq.Array(productIDs)); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0

		for _, productID := range productIDs {
			if err := recomputeRating(ctx, tx, productID); err != nil {
				return err
			}
		}
		return nil
	})
	return deleted, err
}

// EnsureUser returns the local record for an authenticated caller, creating a
// default one when no identity event has arrived yet.
func (s *Store) EnsureUser(ctx context.Context, providerID string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT "+userColumns+" FROM users WHERE provider_id = $1", providerID)
	if err == nil {
		return &user, nil
	}
	if err != sql.ErrNoRows {
		return nil, translate(err)
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, lockIdentitySQL, providerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (provider_id)
			SELECT $1 WHERE NOT EXISTS (`+tombstonedSQL+`)
			ON CONFLICT (provider_id) DO NOTHING`, providerID); err != nil {
			return err
		}
		err := tx.GetContext(ctx, &user,
			"SELECT "+userColumns+" FROM users WHERE provider_id = $1", providerID)
		if err == sql.ErrNoRows {
			return apperr.ErrUserNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser returns a user with addresses and wishlist
func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT "+userColumns+" FROM users WHERE id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, translate(err)
	}

	if user.Addresses, err = listAddresses(ctx, s.db, userID); err != nil {
		return nil, translate(err)
	}

	user.Wishlist = []int64{}
	if err := s.db.SelectContext(ctx, &user.Wishlist,
		"SELECT product_id FROM wishlist_items WHERE user_id = $1 ORDER BY created_at", userID); err != nil {
		return nil, translate(err)
	}

	return &user, nil
}

// ListUsers returns all customers, newest first
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC")
	return users, translate(err)
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

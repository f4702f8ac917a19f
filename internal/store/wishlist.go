package store

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// AddToWishlist stores a product on the user's wishlist
func (s *Store) AddToWishlist(ctx context.Context, userID, productID int64) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	if isPQCode(err, pqForeignKeyViolation) {
		return apperr.ErrProductNotFound
	}
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return apperr.ErrAlreadyInList
	}
	return nil
}

// RemoveFromWishlist deletes a wishlist entry
func (s *Store) RemoveFromWishlist(ctx context.Context, userID, productID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return apperr.ErrNotInWishlist
	}
	return nil
}

// ListWishlist returns the wishlisted products, most recently added first
func (s *Store) ListWishlist(ctx context.Context, userID int64) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT `+prefixed("p", productColumns)+`
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC`, userID)
	return products, translate(err)
}

package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const reviewColumns = `id, user_id, product_id, order_id, rating, created_at, updated_at`

// lockProduct takes the row lock under which a product's rating aggregate is recomputed
func lockProduct(ctx context.Context, tx *sqlx.Tx, productID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, "SELECT id FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return apperr.ErrProductNotFound
	}
	return err
}

// recomputeRating rewrites average_rating and total_reviews from the reviews table
func recomputeRating(ctx context.Context, tx *sqlx.Tx, productID int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products SET
			average_rating = COALESCE((SELECT AVG(rating)::float8 FROM reviews WHERE product_id = $1), 0),
			total_reviews = (SELECT COUNT(*) FROM reviews WHERE product_id = $1),
			updated_at = NOW()
		WHERE id = $1`, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrProductNotFound
	}
	return nil
}

// UpsertReview records the user's rating of a product from one of their
// delivered orders and refreshes the product's aggregate. A second review of
// the same product replaces the first.
func (s *Store) UpsertReview(ctx context.Context, userID, productID, orderID int64, rating int) (*models.Review, error) {
	var review models.Review
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var order struct {
			UserID int64  `db:"user_id"`
			Status string `db:"status"`
		}
		err := tx.GetContext(ctx, &order, "SELECT user_id, status FROM orders WHERE id = $1", orderID)
		if err == sql.ErrNoRows {
			return apperr.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return apperr.ErrForbidden
		}
		if order.Status != models.OrderStatusDelivered {
			return apperr.ErrNotDelivered
		}

		var inOrder bool
		if err := tx.GetContext(ctx, &inOrder,
			"SELECT EXISTS(SELECT 1 FROM order_items WHERE order_id = $1 AND product_id = $2)",
			orderID, productID); err != nil {
			return err
		}
		if !inOrder {
			return apperr.ErrProductNotInOrder
		}

		if err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		query := `
			INSERT INTO reviews (user_id, product_id, order_id, rating)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, product_id) DO UPDATE SET
				rating = EXCLUDED.rating,
				order_id = EXCLUDED.order_id,
				updated_at = NOW()
			RETURNING ` + reviewColumns
		if err := tx.GetContext(ctx, &review, query, userID, productID, orderID, rating); err != nil {
			return err
		}

		return recomputeRating(ctx, tx, productID)
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// DeleteReview removes the user's review and refreshes the product's aggregate
func (s *Store) DeleteReview(ctx context.Context, userID, reviewID int64) (*models.Review, error) {
	var review models.Review
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &review, "SELECT "+reviewColumns+" FROM reviews WHERE id = $1", reviewID)
		if err == sql.ErrNoRows {
			return apperr.ErrReviewNotFound
		}
		if err != nil {
			return err
		}
		if review.UserID != userID {
			return apperr.ErrForbidden
		}

		// product before review, the same lock order as UpsertReview
		if err := lockProduct(ctx, tx, review.ProductID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM reviews WHERE id = $1", reviewID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrReviewNotFound
		}

		return recomputeRating(ctx, tx, review.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ListReviewsByProduct returns a product's reviews, newest first
func (s *Store) ListReviewsByProduct(ctx context.Context, productID int64) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.SelectContext(ctx, &reviews,
		"SELECT "+reviewColumns+" FROM reviews WHERE product_id = $1 ORDER BY created_at DESC, id DESC", productID)
	return reviews, translate(err)
}

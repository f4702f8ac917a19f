package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

func loadCartItems(ctx context.Context, q sqlx.QueryerContext, cartID int64) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := sqlx.SelectContext(ctx, q, &items, `
		SELECT ci.product_id, ci.quantity, p.name, p.price, p.stock, p.images
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id`, cartID)
	return items, err
}

func ensureCart(ctx context.Context, q sqlx.ExtContext, userID int64) (*models.Cart, error) {
	if _, err := q.ExecContext(ctx,
		"INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID); err != nil {
		return nil, err
	}
	var cart models.Cart
	if err := sqlx.GetContext(ctx, q, &cart,
		"SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1", userID); err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreateCart returns the user's cart, creating an empty one if needed
func (s *Store) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := ensureCart(ctx, s.db, userID)
	if err != nil {
		return nil, translate(err)
	}
	if cart.Items, err = loadCartItems(ctx, s.db, cart.ID); err != nil {
		return nil, translate(err)
	}
	return cart, nil
}

// AddCartItem adds quantity to the user's line for the product. The
// resulting quantity never exceeds the product's stock at write time.
func (s *Store) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	cart, err := ensureCart(ctx, s.db, userID)
	if err != nil {
		return nil, translate(err)
	}

	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		SELECT $1, p.id, $3 FROM products p WHERE p.id = $2 AND p.stock >= $3
		ON CONFLICT (cart_id, product_id) DO UPDATE
			SET quantity = cart_items.quantity + EXCLUDED.quantity
			WHERE cart_items.quantity + EXCLUDED.quantity <=
				(SELECT stock FROM products WHERE id = EXCLUDED.product_id)`

	res, err := s.db.ExecContext(ctx, query, cart.ID, productID, quantity)
	if err != nil {
		return nil, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, translate(err)
	}
	if n == 0 {
		if _, err := s.GetProduct(ctx, productID); err != nil {
			return nil, err
		}
		return nil, apperr.ErrInsufficientStock
	}

	if cart.Items, err = loadCartItems(ctx, s.db, cart.ID); err != nil {
		return nil, translate(err)
	}
	return cart, nil
}

// SetCartItemQuantity replaces the quantity of an existing line
func (s *Store) SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		"SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrCartNotFound
	}
	if err != nil {
		return nil, translate(err)
	}

	query := `
		UPDATE cart_items ci SET quantity = $3
		FROM products p
		WHERE ci.cart_id = $1 AND ci.product_id = $2
			AND p.id = ci.product_id AND p.stock >= $3`

	res, err := s.db.ExecContext(ctx, query, cart.ID, productID, quantity)
	if err != nil {
		return nil, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, translate(err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM cart_items WHERE cart_id = $1 AND product_id = $2)",
			cart.ID, productID); err != nil {
			return nil, translate(err)
		}
		if !exists {
			return nil, apperr.ErrCartItemMissing
		}
		return nil, apperr.ErrInsufficientStock
	}

	if cart.Items, err = loadCartItems(ctx, s.db, cart.ID); err != nil {
		return nil, translate(err)
	}
	return &cart, nil
}

// RemoveCartItem deletes a line; removing an absent line is a no-op
func (s *Store) RemoveCartItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE product_id = $2 AND cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID, productID); err != nil {
		return nil, translate(err)
	}
	return s.GetOrCreateCart(ctx, userID)
}

// ClearCart removes every line from the user's cart
func (s *Store) ClearCart(ctx context.Context, userID int64) (*models.Cart, error) {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)`, userID); err != nil {
		return nil, translate(err)
	}
	return s.GetOrCreateCart(ctx, userID)
}

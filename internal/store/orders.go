package store

import (
	"context"
	"database/sql"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const orderColumns = `id, user_id, shipping_address, payment_result, total_price, status, shipped_at, delivered_at, created_at, updated_at`

// PlaceOrder decrements stock for every line, then records the order and its
// item snapshots, all in one transaction. Lines are processed in product id
// order so concurrent orders lock rows in the same sequence. An order already
// recorded under in.RequestID is returned as is.
func (s *Store) PlaceOrder(ctx context.Context, in *models.NewOrder) (*models.Order, error) {
	lines := make([]models.LineItem, len(in.Items))
	copy(lines, in.Items)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	var order models.Order
	var existingID int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if in.RequestID != "" {
			err := tx.GetContext(ctx, &existingID,
				"SELECT id FROM orders WHERE request_id = $1::uuid", in.RequestID)
			if err == nil {
				return nil
			}
			if err != sql.ErrNoRows {
				return err
			}
		}

		items := make([]models.OrderItem, 0, len(lines))
		total := decimal.Zero

		for _, line := range lines {
			var row struct {
				Name  string          `db:"name"`
				Price decimal.Decimal `db:"price"`
			}
			err := tx.GetContext(ctx, &row, `
				UPDATE products SET stock = stock - $2, updated_at = NOW()
				WHERE id = $1 AND stock >= $2
				RETURNING name, price`, line.ProductID, line.Quantity)
			if err == sql.ErrNoRows {
				return classifyShortfall(ctx, tx, line.ProductID)
			}
			if err != nil {
				return err
			}

			total = total.Add(row.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Name:      row.Name,
				Quantity:  line.Quantity,
				Price:     row.Price,
			})
		}

		query := `
			INSERT INTO orders (user_id, shipping_address, payment_result, total_price, status, request_id)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid)
			RETURNING ` + orderColumns
		if err := tx.GetContext(ctx, &order, query,
			in.UserID, in.ShippingAddress, in.PaymentResult, total, models.OrderStatusPending, in.RequestID); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.GetContext(ctx, &items[i].ID, `
				INSERT INTO order_items (order_id, product_id, name, quantity, price)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				order.ID, items[i].ProductID, items[i].Name, items[i].Quantity, items[i].Price); err != nil {
				return err
			}
		}
		order.Items = items

		if in.ClearCart {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM cart_items
				WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)`, in.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if existingID != 0 {
		return s.GetOrder(ctx, existingID)
	}
	return &order, nil
}

// classifyShortfall explains why a conditional decrement matched no row
func classifyShortfall(ctx context.Context, tx *sqlx.Tx, productID int64) error {
	var p struct {
		Name  string `db:"name"`
		Stock int    `db:"stock"`
	}
	err := tx.GetContext(ctx, &p, "SELECT name, stock FROM products WHERE id = $1", productID)
	if err == sql.ErrNoRows {
		return apperr.ErrProductNotFound.WithMessage("Product %d not found", productID)
	}
	if err != nil {
		return err
	}
	return apperr.ErrInsufficientStock.WithMessage("Insufficient stock for %s", p.Name)
}

// GetOrder retrieves an order with its items
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrOrderNotFound
	}
	if err != nil {
		return nil, translate(err)
	}

	order.Items = []models.OrderItem{}
	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT id, order_id, product_id, name, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id",
		id); err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// itemsByOrder loads the items of several orders in one query
func (s *Store) itemsByOrder(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	byOrder := make(map[int64][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return byOrder, nil
	}

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, name, quantity, price
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, pq.Array(orderIDs)); err != nil {
		return nil, err
	}
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, nil
}

// ListOrdersByUser returns the user's orders newest first, flagging those
// that already carry a review.
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]models.UserOrder, error) {
	orders := []models.UserOrder{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT `+prefixed("o", orderColumns)+`,
			EXISTS(SELECT 1 FROM reviews r WHERE r.order_id = o.id) AS has_reviewed
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, translate(err)
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	byOrder, err := s.itemsByOrder(ctx, ids)
	if err != nil {
		return nil, translate(err)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}

// ListRecentOrders returns the newest orders with their customer's name and email
func (s *Store) ListRecentOrders(ctx context.Context, limit int) ([]models.AdminOrder, error) {
	orders := []models.AdminOrder{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT `+prefixed("o", orderColumns)+`,
			COALESCE(u.name, '') AS customer_name,
			COALESCE(u.email, '') AS customer_email
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, translate(err)
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	byOrder, err := s.itemsByOrder(ctx, ids)
	if err != nil {
		return nil, translate(err)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}

// UpdateOrderStatus moves an order forward in its lifecycle. Setting the
// current status again is accepted and leaves the timestamps untouched; a
// backward move matches no row and is rejected. It reports whether the status
// actually changed.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, bool, error) {
	var row struct {
		models.Order
		PreviousStatus string `db:"previous_status"`
	}

	query := `
		WITH prev AS (
			SELECT id, status FROM orders WHERE id = $1 FOR UPDATE
		)
		UPDATE orders o SET
			status = $2::text,
			shipped_at = CASE WHEN $2::text IN ('Shipped', 'Delivered') THEN COALESCE(o.shipped_at, NOW()) ELSE o.shipped_at END,
			delivered_at = CASE WHEN $2::text = 'Delivered' THEN COALESCE(o.delivered_at, NOW()) ELSE o.delivered_at END,
			updated_at = CASE WHEN prev.status = $2::text THEN o.updated_at ELSE NOW() END
		FROM prev
		WHERE o.id = prev.id
			AND array_position(ARRAY['Pending', 'Shipped', 'Delivered'], prev.status)
				<= array_position(ARRAY['Pending', 'Shipped', 'Delivered'], $2::text)
		RETURNING ` + prefixed("o", orderColumns) + `, prev.status AS previous_status`

	err := s.db.GetContext(ctx, &row, query, id, status)
	if err == sql.ErrNoRows {
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", id); err != nil {
			return nil, false, translate(err)
		}
		if !exists {
			return nil, false, apperr.ErrOrderNotFound
		}
		return nil, false, apperr.ErrInvalidStatusTransition
	}
	if err != nil {
		return nil, false, translate(err)
	}

	order := row.Order
	order.Items = []models.OrderItem{}
	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT id, order_id, product_id, name, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id",
		id); err != nil {
		return nil, false, translate(err)
	}
	return &order, row.PreviousStatus != status, nil
}

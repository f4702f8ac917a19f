package store

import (
	"context"

	"storefront/internal/models"
)

// DashboardStats reads all admin counters in one statement so they describe
// the same snapshot.
func (s *Store) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COALESCE(SUM(total_price), 0) FROM orders) AS total_revenue,
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COUNT(*) FROM users) AS total_customers,
			(SELECT COUNT(*) FROM products) AS total_products`)
	if err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

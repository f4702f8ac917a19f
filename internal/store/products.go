package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const productColumns = `id, name, description, price, stock, category, images, average_rating, total_reviews, created_at, updated_at`

// prefixed qualifies every column in cols with alias
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// CreateProduct inserts a product and fills its generated fields
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock, category, images)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + productColumns

	err := s.db.GetContext(ctx, p, query,
		p.Name, p.Description, p.Price, p.Stock, p.Category, p.Images)
	return translate(err)
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrProductNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListProducts returns products newest first. A non-positive limit returns all.
func (s *Store) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	products := []models.Product{}
	query := "SELECT " + productColumns + " FROM products ORDER BY created_at DESC, id DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1 OFFSET $2"
		args = append(args, limit, offset)
	}
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, translate(err)
}

// UpdateProduct applies patch and returns the updated product together with
// the images it replaced, if any.
func (s *Store) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, []string, error) {
	var (
		updated  models.Product
		replaced []string
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var old pq.StringArray
		err := tx.GetContext(ctx, &old, "SELECT images FROM products WHERE id = $1 FOR UPDATE", id)
		if err == sql.ErrNoRows {
			return apperr.ErrProductNotFound
		}
		if err != nil {
			return err
		}

		var images interface{}
		if patch.Images != nil {
			images = pq.StringArray(patch.Images)
		}

		query := `
			UPDATE products SET
				name = COALESCE($2::text, name),
				description = COALESCE($3::text, description),
				price = COALESCE($4::numeric, price),
				stock = COALESCE($5::integer, stock),
				category = COALESCE($6::text, category),
				images = COALESCE($7::text[], images),
				updated_at = NOW()
			WHERE id = $1
			RETURNING ` + productColumns

		if err := tx.GetContext(ctx, &updated, query, id,
			patch.Name, patch.Description, patch.Price, patch.Stock, patch.Category, images); err != nil {
			return err
		}

		if patch.Images != nil {
			replaced = []string(old)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &updated, replaced, nil
}

// DeleteProduct removes a product; cart lines, wishlist entries and reviews
// referencing it go with it. Order history keeps its snapshot.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p, "DELETE FROM products WHERE id = $1 RETURNING "+productColumns, id)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrProductNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

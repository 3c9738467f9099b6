package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const productColumns = "id, name, description, price, image_path, created_at, updated_at"

// CreateProduct inserts a product and fills its generated fields
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, image_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, product, query,
			product.Name, product.Description, product.Price, product.AssetRef)
	})
	return mapError(err, "product", product.ID)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "product", id)
	}
	return &product, nil
}

// ListProducts returns a page of products ordered by id
func (s *Store) ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ListProductsWithAssets returns every product that references an asset
func (s *Store) ListProductsWithAssets(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE image_path IS NOT NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list products with assets: %w", err)
	}
	return products, nil
}

// UpdateProduct persists every mutable column, including the asset reference
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, image_path = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING created_at, updated_at`

	err := s.db.GetContext(ctx, product, query,
		product.Name, product.Description, product.Price, product.AssetRef, product.ID)
	return mapError(err, "product", product.ID)
}

// SetProductAsset replaces only the asset reference; nil clears it
func (s *Store) SetProductAsset(ctx context.Context, id int64, ref *string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET image_path = $1, updated_at = NOW() WHERE id = $2", ref, id)
	if err != nil {
		return mapError(err, "product", id)
	}
	return expectAffected(res, "product", id)
}

// ClearProductAsset drops the asset reference only if it still equals ref
func (s *Store) ClearProductAsset(ctx context.Context, id int64, ref string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET image_path = NULL, updated_at = NOW() WHERE id = $1 AND image_path = $2", id, ref)
	if err != nil {
		return false, mapError(err, "product", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteProduct removes a product row
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return mapError(err, "product", id)
	}
	return expectAffected(res, "product", id)
}

// GetProductPrices returns the current price of each existing product in ids
func (s *Store) GetProductPrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	prices := make(map[int64]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	query, args, err := sqlx.In("SELECT id, price FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []struct {
		ID    int64           `db:"id"`
		Price decimal.Decimal `db:"price"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load product prices: %w", err)
	}
	for _, r := range rows {
		prices[r.ID] = r.Price
	}
	return prices, nil
}

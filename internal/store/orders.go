package store

import (
	"context"
	"fmt"
	"strings"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, customer_name, customer_surname, customer_email, customer_phone,
	delivery_country, delivery_city, delivery_street, delivery_building,
	items, status, session_id, created_at, updated_at`

// CreateOrder inserts an order. CreatedAt is taken from the caller.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_name, customer_surname, customer_email, customer_phone,
			delivery_country, delivery_city, delivery_street, delivery_building,
			items, status, session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id, updated_at`

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, order, query,
			order.CustomerName, order.CustomerSurname, order.CustomerEmail, order.CustomerPhone,
			order.DeliveryCountry, order.DeliveryCity, order.DeliveryStreet, order.DeliveryBuilding,
			order.Items, order.Status, order.SessionID, order.CreatedAt)
	})
	return mapError(err, "order", order.ID)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "order", id)
	}
	return &order, nil
}

// ListOrders returns a page of orders, newest first
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus changes the status of an order under a row lock.
// check sees the current row and may veto the change by returning an error.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, check func(*models.Order) error) (*models.Order, error) {
	var order models.Order
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &order,
			"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
		if err != nil {
			return mapError(err, "order", id)
		}

		if check != nil {
			if err := check(&order); err != nil {
				return err
			}
		}

		err = tx.GetContext(ctx, &order,
			"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING status, updated_at",
			status, id)
		return mapError(err, "order", id)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder removes an order row
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return mapError(err, "order", id)
	}
	return expectAffected(res, "order", id)
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"
)

// CreateOrderWithItems inserts an order and all of its items in one
// transaction. Either every row lands or none do; an order row without items
// is unreachable through this path.
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("refusing to create order without items")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (user_id, total_amount, status, payment_status, gateway_order_id, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, order, orderQuery,
		order.UserID, order.TotalAmount, order.Status, order.PaymentStatus,
		order.GatewayOrderID, order.ShippingAddress); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, quantity, price, selected_size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.GetContext(ctx, &items[i].ID, itemQuery,
			items[i].OrderID, items[i].ProductID, items[i].Quantity,
			items[i].Price, items[i].SelectedSize); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

// DeleteOrder removes an order row. Compensation only: used when a store
// backend cannot span both inserts in one transaction.
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	return err
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByGatewayOrderID retrieves an order by its gateway handle.
func (s *Store) GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE gateway_order_id = $1", gatewayOrderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found for gateway order: %s", gatewayOrderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// GetOrdersByUserID retrieves orders for a user, newest first.
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// UpdatePaymentStatus updates an order's payment status by gateway order id.
func (s *Store) UpdatePaymentStatus(ctx context.Context, gatewayOrderID, paymentStatus string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE gateway_order_id = $2",
		paymentStatus, gatewayOrderID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("no order for gateway order: %s", gatewayOrderID)
	}
	return nil
}

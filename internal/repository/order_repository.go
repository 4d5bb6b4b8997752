package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderFinalized = errors.New("order has already been finalized")
)

// OrderRepository defines the interface for reading committed orders and
// updating their status. Order creation happens only through CheckoutTx.
type OrderRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	FindByID(ctx context.Context, orderID, userID int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderWithLinesQuery = `
	SELECT
		o.id,
		o.user_id,
		o.total_amount,
		o.status,
		o.order_date,
		oi.id,
		oi.product_id,
		p.name AS product_name,
		oi.quantity,
		oi.price_at_order
	FROM orders o
	JOIN order_items oi ON oi.order_id = o.id
	JOIN products p ON p.id = oi.product_id
`

// scanOrderRows groups joined order/line rows into orders, preserving
// row order
func scanOrderRows(rows *sql.Rows) ([]*domain.Order, error) {
	byID := map[int64]*domain.Order{}
	orders := []*domain.Order{}

	for rows.Next() {
		var (
			order domain.Order
			line  domain.OrderLine
		)
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TotalAmount,
			&order.Status,
			&order.OrderDate,
			&line.ID,
			&line.ProductID,
			&line.ProductName,
			&line.Quantity,
			&line.PriceAtOrder,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}

		existing, ok := byID[order.ID]
		if !ok {
			existing = &order
			byID[order.ID] = existing
			orders = append(orders, existing)
		}
		line.OrderID = existing.ID
		existing.Lines = append(existing.Lines, &line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	return orders, nil
}

// ListByUser retrieves all of a user's orders with their lines, newest
// first
func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	query := orderWithLinesQuery + `
	WHERE o.user_id = $1
	ORDER BY o.order_date DESC, o.id DESC, oi.id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	return scanOrderRows(rows)
}

// FindByID retrieves a single order, scoped to its owner. A mismatched
// user sees ErrOrderNotFound, not a permission error.
func (r *orderRepository) FindByID(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	query := orderWithLinesQuery + `
	WHERE o.id = $1 AND o.user_id = $2
	ORDER BY oi.id
	`

	rows, err := r.db.QueryContext(ctx, query, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}

	return orders[0], nil
}

// UpdateStatus transitions an order out of Processing. The current-status
// check and the write are one conditional statement, so a finalized order
// can never transition twice.
func (r *orderRepository) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	query := `
		UPDATE orders
		SET status = $2
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, orderID, status, domain.OrderStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrOrderFinalized
	}

	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
)

// CheckoutStore acquires the transactional handle checkout runs on.
// Every read and write of a single checkout executes against the one
// CheckoutTx returned by Begin.
type CheckoutStore interface {
	Begin(ctx context.Context) (CheckoutTx, error)
}

// CheckoutTx is the set of operations available inside the checkout
// transaction. Rollback after Commit is a no-op, so callers defer
// Rollback unconditionally; the handle is released on every exit path.
type CheckoutTx interface {
	// CartLines reads the user's pending cart lines (product id and
	// quantity only; prices are never read from the cart).
	CartLines(ctx context.Context, userID int64) ([]*domain.CartLine, error)

	// FindProduct reads the current product row, the authoritative
	// source for price and stock at checkout time.
	FindProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// ReserveStock decrements stock by quantity iff enough remains.
	// The check and the decrement are one conditional statement, so no
	// two concurrent checkouts can drive stock below zero. Returns
	// ErrInsufficientStock when the condition fails for an existing
	// product and ErrProductNotFound when the product is gone.
	ReserveStock(ctx context.Context, productID int64, quantity int) error

	// CreateOrder inserts the order header and fills in the generated
	// ID and order date.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// AddOrderLines inserts the frozen (product, quantity, price) rows.
	AddOrderLines(ctx context.Context, orderID int64, lines []*domain.OrderLine) error

	// ClearCart deletes all of the user's cart lines.
	ClearCart(ctx context.Context, userID int64) error

	Commit() error
	Rollback() error
}

type checkoutStore struct {
	db *sql.DB
}

// NewCheckoutStore creates a CheckoutStore backed by the database
func NewCheckoutStore(db *sql.DB) CheckoutStore {
	return &checkoutStore{db: db}
}

func (s *checkoutStore) Begin(ctx context.Context) (CheckoutTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &checkoutTx{tx: tx}, nil
}

type checkoutTx struct {
	tx *sql.Tx
}

func (t *checkoutTx) CartLines(ctx context.Context, userID int64) ([]*domain.CartLine, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		WHERE c.user_id = $1
		ORDER BY ci.id
	`

	rows, err := t.tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart lines: %w", err)
	}
	defer rows.Close()

	lines := []*domain.CartLine{}
	for rows.Next() {
		line := &domain.CartLine{}
		if err := rows.Scan(&line.ID, &line.CartID, &line.ProductID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

func (t *checkoutTx) FindProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `
		SELECT id, name, description, price, stock_quantity, image_url, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	product := &domain.Product{}
	err := scanProduct(t.tx.QueryRowContext(ctx, query, productID), product)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

func (t *checkoutTx) ReserveStock(ctx context.Context, productID int64, quantity int) error {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1
	`

	result, err := t.tx.ExecContext(ctx, query, quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a vanished product from a lost stock race
		var exists bool
		err := t.tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check product existence: %w", err)
		}
		if !exists {
			return ErrProductNotFound
		}
		return ErrInsufficientStock
	}

	return nil
}

func (t *checkoutTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (user_id, total_amount, status)
		VALUES ($1, $2, $3)
		RETURNING id, order_date
	`

	err := t.tx.QueryRowContext(
		ctx,
		query,
		order.UserID,
		order.TotalAmount,
		order.Status,
	).Scan(&order.ID, &order.OrderDate)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (t *checkoutTx) AddOrderLines(ctx context.Context, orderID int64, lines []*domain.OrderLine) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price_at_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	for _, line := range lines {
		line.OrderID = orderID
		err := t.tx.QueryRowContext(
			ctx,
			query,
			orderID,
			line.ProductID,
			line.Quantity,
			line.PriceAtOrder,
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("failed to add order line: %w", err)
		}
	}

	return nil
}

func (t *checkoutTx) ClearCart(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM cart_items
		WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)
	`

	if _, err := t.tx.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

func (t *checkoutTx) Commit() error {
	return t.tx.Commit()
}

func (t *checkoutTx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

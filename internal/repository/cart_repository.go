package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

var (
	ErrCartLineNotFound = errors.New("item not found in cart")
)

// CartRepository defines the interface for cart data access. All
// operations are single-statement (plus the find-or-create pair); the
// transactional path at checkout goes through CheckoutStore instead.
type CartRepository interface {
	FindOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)
	Snapshot(ctx context.Context, userID int64) (*domain.CartSnapshot, error)
	UpsertLine(ctx context.Context, cartID, productID int64, quantity int) error
	SetQuantity(ctx context.Context, cartID, productID int64, quantity int) error
	RemoveLine(ctx context.Context, cartID, productID int64) error
	Clear(ctx context.Context, cartID int64) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// FindOrCreate returns the user's cart, creating it on first use
func (r *cartRepository) FindOrCreate(ctx context.Context, userID int64) (*domain.Cart, error) {
	query := `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`

	cart := &domain.Cart{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)

	if err == nil {
		return cart, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	createQuery := `
		INSERT INTO carts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id, user_id, created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, createQuery, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return cart, nil
}

// Snapshot retrieves the cart lines joined with current product name and
// price, including a per-line subtotal. Prices here are for display only.
func (r *cartRepository) Snapshot(ctx context.Context, userID int64) (*domain.CartSnapshot, error) {
	cart, err := r.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			ci.id,
			ci.cart_id,
			ci.product_id,
			p.name AS product_name,
			p.price AS unit_price,
			ci.quantity,
			(ci.quantity * p.price) AS subtotal
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`

	rows, err := r.db.QueryContext(ctx, query, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart lines: %w", err)
	}
	defer rows.Close()

	lines := []*domain.CartLine{}
	for rows.Next() {
		line := &domain.CartLine{}
		err := rows.Scan(
			&line.ID,
			&line.CartID,
			&line.ProductID,
			&line.ProductName,
			&line.UnitPrice,
			&line.Quantity,
			&line.Subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return &domain.CartSnapshot{
		CartID: cart.ID,
		UserID: cart.UserID,
		Lines:  lines,
	}, nil
}

// UpsertLine adds a product to the cart, or replaces the quantity if the
// line already exists
func (r *cartRepository) UpsertLine(ctx context.Context, cartID, productID int64, quantity int) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, cartID, productID, quantity); err != nil {
		return fmt.Errorf("failed to upsert cart line: %w", err)
	}

	return nil
}

// SetQuantity updates an existing line to an absolute quantity
func (r *cartRepository) SetQuantity(ctx context.Context, cartID, productID int64, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE cart_id = $1 AND product_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, cartID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart line quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartLineNotFound
	}

	return nil
}

// RemoveLine removes a product from the cart entirely
func (r *cartRepository) RemoveLine(ctx context.Context, cartID, productID int64) error {
	query := `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartLineNotFound
	}

	return nil
}

// Clear deletes all lines from the cart
func (r *cartRepository) Clear(ctx context.Context, cartID int64) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1`

	if _, err := r.db.ExecContext(ctx, query, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

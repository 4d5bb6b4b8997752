package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrCartEmpty means checkout was attempted with no cart lines.
	// Detected before any write; nothing is mutated.
	ErrCartEmpty = errors.New("cannot create order: cart is empty")

	// ErrStockConflict means a stock check passed during validation but
	// the conditional decrement lost a race against a concurrent
	// checkout. The whole transaction is rolled back.
	ErrStockConflict = errors.New("stock changed during checkout")
)

// StockError reports which cart line could not be satisfied, with the
// available-vs-requested quantities the client needs to correct and retry
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("not enough stock for %s: available %d, requested %d",
		name, e.Available, e.Requested)
}

// CheckoutService converts a user's cart into a persisted order.
type CheckoutService interface {
	Checkout(ctx context.Context, userID int64) (*domain.Order, error)
}

type checkoutService struct {
	store  repository.CheckoutStore
	logger *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(store repository.CheckoutStore, logger *zap.Logger) CheckoutService {
	return &checkoutService{store: store, logger: logger}
}

// Checkout runs the whole conversion inside one transaction: read the
// cart, validate stock against current product rows, compute the total
// from authoritative prices, insert the order header and lines, decrement
// stock, clear the cart, commit. Any failure at any step rolls the whole
// thing back; the caller's cart is untouched and safe to retry from.
func (s *checkoutService) Checkout(ctx context.Context, userID int64) (*domain.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout: %w", err)
	}
	defer tx.Rollback()

	lines, err := tx.CartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	if len(lines) == 0 {
		return nil, ErrCartEmpty
	}

	// Validate every line against the current product rows and capture
	// the authoritative price per line. Client-side prices never enter
	// this computation; the cart carries no price at all.
	total := decimal.Zero
	orderLines := make([]*domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		product, err := tx.FindProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, &StockError{
					ProductID: line.ProductID,
					Requested: line.Quantity,
					Available: 0,
				}
			}
			return nil, fmt.Errorf("failed to load product %d: %w", line.ProductID, err)
		}

		if product.Stock < line.Quantity {
			return nil, &StockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Stock,
			}
		}

		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		orderLines = append(orderLines, &domain.OrderLine{
			ProductID:    product.ID,
			ProductName:  product.Name,
			Quantity:     line.Quantity,
			PriceAtOrder: product.Price,
		})
	}

	order := &domain.Order{
		UserID:      userID,
		TotalAmount: total,
		Status:      domain.OrderStatusProcessing,
	}

	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.AddOrderLines(ctx, order.ID, orderLines); err != nil {
		return nil, fmt.Errorf("failed to add order lines: %w", err)
	}

	for _, line := range orderLines {
		if err := tx.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) ||
				errors.Is(err, repository.ErrProductNotFound) {
				// Validation saw enough stock, so a concurrent
				// checkout got there first.
				return nil, fmt.Errorf("%w: product %d", ErrStockConflict, line.ProductID)
			}
			return nil, fmt.Errorf("failed to reserve stock for product %d: %w", line.ProductID, err)
		}
	}

	if err := tx.ClearCart(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	order.Lines = orderLines

	s.logger.Info("Checkout completed",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", order.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Int("line_count", len(orderLines)),
	)

	return order, nil
}

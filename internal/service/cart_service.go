package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity covers non-positive quantities. Removing a
	// line is its own operation; quantity zero is never an implicit
	// delete.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// CartService manages a user's pending cart lines
type CartService interface {
	GetCart(ctx context.Context, userID int64) (*domain.CartSnapshot, error)
	AddLine(ctx context.Context, userID, productID int64, quantity int) (*domain.CartSnapshot, error)
	UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartSnapshot, error)
	RemoveLine(ctx context.Context, userID, productID int64) (*domain.CartSnapshot, error)
	ClearCart(ctx context.Context, userID int64) error
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

// NewCartService creates a new instance of CartService
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{cartRepo: cartRepo, productRepo: productRepo}
}

// GetCart returns the cart snapshot with per-line subtotals and a total.
// The total is for display; checkout recomputes it from product rows.
func (s *cartService) GetCart(ctx context.Context, userID int64) (*domain.CartSnapshot, error) {
	snapshot, err := s.cartRepo.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	total := decimal.Zero
	for _, line := range snapshot.Lines {
		total = total.Add(line.Subtotal)
	}
	snapshot.Total = total

	return snapshot, nil
}

// checkStock verifies the product exists and has enough stock for the
// requested quantity
func (s *cartService) checkStock(ctx context.Context, productID int64, quantity int) error {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to load product: %w", err)
	}

	if product.Stock < quantity {
		return &StockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.Stock,
		}
	}

	return nil
}

// AddLine puts a product in the cart, replacing the quantity if the line
// already exists
func (s *cartService) AddLine(ctx context.Context, userID, productID int64, quantity int) (*domain.CartSnapshot, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	if err := s.checkStock(ctx, productID, quantity); err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if err := s.cartRepo.UpsertLine(ctx, cart.ID, productID, quantity); err != nil {
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}

	return s.GetCart(ctx, userID)
}

// UpdateQuantity sets an existing line to an absolute quantity
func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartSnapshot, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	if err := s.checkStock(ctx, productID, quantity); err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if err := s.cartRepo.SetQuantity(ctx, cart.ID, productID, quantity); err != nil {
		if errors.Is(err, repository.ErrCartLineNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update cart line: %w", err)
	}

	return s.GetCart(ctx, userID)
}

// RemoveLine takes a product out of the cart
func (s *cartService) RemoveLine(ctx context.Context, userID, productID int64) (*domain.CartSnapshot, error) {
	cart, err := s.cartRepo.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if err := s.cartRepo.RemoveLine(ctx, cart.ID, productID); err != nil {
		if errors.Is(err, repository.ErrCartLineNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to remove cart line: %w", err)
	}

	return s.GetCart(ctx, userID)
}

// ClearCart removes every line from the user's cart
func (s *cartService) ClearCart(ctx context.Context, userID int64) error {
	cart, err := s.cartRepo.FindOrCreate(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get cart: %w", err)
	}

	if err := s.cartRepo.Clear(ctx, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

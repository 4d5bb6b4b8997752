package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

var (
	ErrInvalidOrderStatus = errors.New("invalid order status")
)

// OrderService exposes read access to committed orders and the admin
// status transition. Orders are immutable otherwise.
type OrderService interface {
	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
	GetOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) error
}

type orderService struct {
	orderRepo repository.OrderRepository
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orderRepo repository.OrderRepository) OrderService {
	return &orderService{orderRepo: orderRepo}
}

// ListOrders returns all of a user's orders, newest first
func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns a single order owned by the user
func (s *orderService) GetOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// UpdateStatus transitions an order from Processing to Completed or
// Cancelled. The repository rejects transitions on finalized orders.
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	if status != domain.OrderStatusCompleted && status != domain.OrderStatusCancelled {
		return ErrInvalidOrderStatus
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) || errors.Is(err, repository.ErrOrderFinalized) {
			return err
		}
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return nil
}

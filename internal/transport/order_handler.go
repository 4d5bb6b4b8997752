package transport

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UpdateOrderStatusRequest represents the admin status-transition payload
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Completed Cancelled"`
}

// OrderHandler handles HTTP requests for checkout and order history
type OrderHandler struct {
	checkoutService service.CheckoutService
	orderService    service.OrderService
	logger          *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(checkoutService service.CheckoutService, orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		checkoutService: checkoutService,
		orderService:    orderService,
		logger:          logger,
	}
}

// RegisterRoutes registers order routes; all require authentication,
// the status transition additionally requires the admin role
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Checkout)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Patch("/{id}/status", h.UpdateStatus)
		})
	})
}

// Checkout places an order from the user's current cart
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	order, err := h.checkoutService.Checkout(r.Context(), userID)
	if err != nil {
		var stockErr *service.StockError
		switch {
		case errors.Is(err, service.ErrCartEmpty):
			middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
		case errors.As(err, &stockErr):
			middleware.RespondWithErrorDetails(w, http.StatusBadRequest, stockErr.Error(), map[string]interface{}{
				"product_id":   stockErr.ProductID,
				"product_name": stockErr.ProductName,
				"requested":    stockErr.Requested,
				"available":    stockErr.Available,
			})
		case errors.Is(err, service.ErrStockConflict):
			middleware.RespondWithError(w, http.StatusConflict, "stock changed during checkout, please retry")
		default:
			h.logger.Error("Checkout failed", zap.Int64("user_id", userID), zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// ListOrders returns the user's order history, newest first
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.orderService.ListOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Int64("user_id", userID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// GetOrder returns a single order owned by the user. Orders belonging
// to other users are indistinguishable from missing ones.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("Failed to get order", zap.Int64("order_id", orderID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// UpdateStatus transitions a Processing order to Completed or Cancelled
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req UpdateOrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Update order status validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.orderService.UpdateStatus(r.Context(), orderID, req.Status); err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, repository.ErrOrderFinalized):
			middleware.RespondWithError(w, http.StatusConflict, "order has already been finalized")
		case errors.Is(err, service.ErrInvalidOrderStatus):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Failed to update order status", zap.Int64("order_id", orderID), zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update order status")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"status":   req.Status,
	})
}

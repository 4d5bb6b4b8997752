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

// AddCartLineRequest represents the add-to-cart payload
type AddCartLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

// UpdateCartLineRequest represents the set-quantity payload. Quantity
// zero is rejected here; removing a line is DELETE /api/cart/{productID}.
type UpdateCartLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

// CartHandler handles HTTP requests for cart operations
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// RegisterRoutes registers cart routes; all require authentication
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetCart)
		r.Post("/", h.AddLine)
		r.Patch("/", h.UpdateQuantity)
		r.Delete("/", h.ClearCart)
		r.Delete("/{productID}", h.RemoveLine)
	})
}

func (h *CartHandler) requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return userID, true
}

// respondCartError maps cart service errors to HTTP responses
func (h *CartHandler) respondCartError(w http.ResponseWriter, err error, action string) {
	var stockErr *service.StockError
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrCartLineNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "item not found in cart")
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &stockErr):
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, stockErr.Error(), map[string]interface{}{
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	default:
		h.logger.Error("Cart operation failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// GetCart returns the user's cart snapshot
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.cartService.GetCart(r.Context(), userID)
	if err != nil {
		h.respondCartError(w, err, "get cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, snapshot)
}

// AddLine adds a product to the cart
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req AddCartLineRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Add cart line validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snapshot, err := h.cartService.AddLine(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondCartError(w, err, "add item to cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, snapshot)
}

// UpdateQuantity sets an existing cart line to an absolute quantity
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req UpdateCartLineRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Update cart line validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snapshot, err := h.cartService.UpdateQuantity(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondCartError(w, err, "update cart item")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, snapshot)
}

// RemoveLine removes a product from the cart
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	snapshot, err := h.cartService.RemoveLine(r.Context(), userID, productID)
	if err != nil {
		h.respondCartError(w, err, "remove item from cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, snapshot)
}

// ClearCart removes every line from the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.cartService.ClearCart(r.Context(), userID); err != nil {
		h.respondCartError(w, err, "clear cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

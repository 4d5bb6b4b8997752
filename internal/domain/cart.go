package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a user's single shopping cart. One row per user.
type Cart struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartLine is a pending (product, quantity) intent not yet committed to
// an order. ProductName, UnitPrice and Subtotal are joined from the
// current product row for display; they are never trusted at checkout.
type CartLine struct {
	ID          int64           `json:"id" db:"id"`
	CartID      int64           `json:"cart_id" db:"cart_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name,omitempty" db:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
}

// CartSnapshot is the full cart state returned to the client
type CartSnapshot struct {
	CartID int64           `json:"cart_id"`
	UserID int64           `json:"user_id"`
	Lines  []*CartLine     `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

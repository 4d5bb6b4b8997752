package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. Orders are immutable once written except for these
// status transitions.
const (
	OrderStatusProcessing = "Processing"
	OrderStatusCompleted  = "Completed"
	OrderStatusCancelled  = "Cancelled"
)

// Order is a committed purchase owned exclusively by its user
type Order struct {
	ID          int64           `json:"id" db:"id"`
	UserID      int64           `json:"user_id" db:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status      string          `json:"status" db:"status"`
	OrderDate   time.Time       `json:"order_date" db:"order_date"`
	Lines       []*OrderLine    `json:"items,omitempty"`
}

// OrderLine is a frozen historical record of (product, quantity, price).
// PriceAtOrder is captured at checkout time and is independent of any
// later product price change.
type OrderLine struct {
	ID           int64           `json:"id" db:"id"`
	OrderID      int64           `json:"order_id" db:"order_id"`
	ProductID    int64           `json:"product_id" db:"product_id"`
	ProductName  string          `json:"product_name,omitempty" db:"product_name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order" db:"price_at_order"`
}

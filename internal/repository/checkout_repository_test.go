package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// createCheckoutFixture seeds a user with a cart containing the given
// quantity of a freshly created product and returns their IDs
func createCheckoutFixture(t *testing.T, email string, stock, cartQuantity int) (userID, productID int64) {
	t.Helper()
	ctx := context.Background()

	userRepo := NewUserRepository(testDB)
	productRepo := NewProductRepository(testDB)
	cartRepo := NewCartRepository(testDB)

	_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email)

	user := &domain.User{
		Username:     "checkout",
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := userRepo.Create(ctx, user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	product := &domain.Product{
		Name:      "Checkout Widget",
		Price:     decimal.RequireFromString("5.00"),
		Stock:     stock,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := productRepo.Create(ctx, product); err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}

	cart, err := cartRepo.FindOrCreate(ctx, user.ID)
	if err != nil {
		t.Fatalf("Failed to create cart: %v", err)
	}
	if err := cartRepo.UpsertLine(ctx, cart.ID, product.ID, cartQuantity); err != nil {
		t.Fatalf("Failed to add cart line: %v", err)
	}

	t.Cleanup(func() {
		_, _ = testDB.Exec("DELETE FROM users WHERE id = $1", user.ID)
		_, _ = testDB.Exec("DELETE FROM products WHERE id = $1", product.ID)
	})

	return user.ID, product.ID
}

func productStock(t *testing.T, productID int64) int {
	t.Helper()
	var stock int
	if err := testDB.QueryRow("SELECT stock_quantity FROM products WHERE id = $1", productID).Scan(&stock); err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}
	return stock
}

func cartLineCount(t *testing.T, userID int64) int {
	t.Helper()
	var count int
	err := testDB.QueryRow(`
		SELECT COUNT(*) FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.user_id = $1`, userID).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count cart lines: %v", err)
	}
	return count
}

func TestCheckoutTransactionCommit(t *testing.T) {
	userID, productID := createCheckoutFixture(t, "commit@example.com", 10, 3)
	store := NewCheckoutStore(testDB)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	defer tx.Rollback()

	lines, err := tx.CartLines(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to read cart lines: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("Unexpected cart lines: %+v", lines)
	}

	product, err := tx.FindProduct(ctx, productID)
	if err != nil {
		t.Fatalf("Failed to find product: %v", err)
	}

	order := &domain.Order{
		UserID:      userID,
		TotalAmount: product.Price.Mul(decimal.NewFromInt(3)),
		Status:      domain.OrderStatusProcessing,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	if order.ID == 0 {
		t.Fatal("Order ID was not populated")
	}
	if order.OrderDate.IsZero() {
		t.Fatal("Order date was not populated")
	}

	orderLines := []*domain.OrderLine{{
		ProductID:    productID,
		Quantity:     3,
		PriceAtOrder: product.Price,
	}}
	if err := tx.AddOrderLines(ctx, order.ID, orderLines); err != nil {
		t.Fatalf("Failed to add order lines: %v", err)
	}

	if err := tx.ReserveStock(ctx, productID, 3); err != nil {
		t.Fatalf("Failed to reserve stock: %v", err)
	}

	if err := tx.ClearCart(ctx, userID); err != nil {
		t.Fatalf("Failed to clear cart: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	if stock := productStock(t, productID); stock != 7 {
		t.Errorf("Expected stock 7 after commit, got %d", stock)
	}
	if count := cartLineCount(t, userID); count != 0 {
		t.Errorf("Expected empty cart after commit, got %d lines", count)
	}
}

func TestCheckoutTransactionRollback(t *testing.T) {
	userID, productID := createCheckoutFixture(t, "rollback@example.com", 10, 2)
	store := NewCheckoutStore(testDB)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}

	if err := tx.ReserveStock(ctx, productID, 2); err != nil {
		t.Fatalf("Failed to reserve stock: %v", err)
	}
	if err := tx.ClearCart(ctx, userID); err != nil {
		t.Fatalf("Failed to clear cart: %v", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Failed to rollback: %v", err)
	}

	// Everything the transaction touched is back to its prior state
	if stock := productStock(t, productID); stock != 10 {
		t.Errorf("Expected stock 10 after rollback, got %d", stock)
	}
	if count := cartLineCount(t, userID); count != 1 {
		t.Errorf("Expected cart intact after rollback, got %d lines", count)
	}
}

func TestReserveStockInsufficient(t *testing.T) {
	_, productID := createCheckoutFixture(t, "insufficient@example.com", 2, 1)
	store := NewCheckoutStore(testDB)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	defer tx.Rollback()

	if err := tx.ReserveStock(ctx, productID, 3); err != ErrInsufficientStock {
		t.Fatalf("Expected ErrInsufficientStock, got: %v", err)
	}
}

func TestReserveStockMissingProduct(t *testing.T) {
	store := NewCheckoutStore(testDB)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	defer tx.Rollback()

	if err := tx.ReserveStock(ctx, 999999, 1); err != ErrProductNotFound {
		t.Fatalf("Expected ErrProductNotFound, got: %v", err)
	}
}

// Two checkouts race for the last unit; the conditional decrement must
// let exactly one of them through and never drive stock negative.
func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	const attempts = 2

	userIDs := make([]int64, attempts)
	var productID int64

	// Both users want the same single-unit product
	userIDs[0], productID = createCheckoutFixture(t, "race-a@example.com", 1, 1)

	ctx := context.Background()
	userRepo := NewUserRepository(testDB)
	cartRepo := NewCartRepository(testDB)

	_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", "race-b@example.com")
	second := &domain.User{
		Username:     "raceb",
		Email:        "race-b@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := userRepo.Create(ctx, second); err != nil {
		t.Fatalf("Failed to create second user: %v", err)
	}
	t.Cleanup(func() { _, _ = testDB.Exec("DELETE FROM users WHERE id = $1", second.ID) })
	userIDs[1] = second.ID

	cart, err := cartRepo.FindOrCreate(ctx, second.ID)
	if err != nil {
		t.Fatalf("Failed to create second cart: %v", err)
	}
	if err := cartRepo.UpsertLine(ctx, cart.ID, productID, 1); err != nil {
		t.Fatalf("Failed to add second cart line: %v", err)
	}

	store := NewCheckoutStore(testDB)
	results := make([]error, attempts)
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = func() error {
				tx, err := store.Begin(ctx)
				if err != nil {
					return err
				}
				defer tx.Rollback()

				if err := tx.ReserveStock(ctx, productID, 1); err != nil {
					return err
				}

				order := &domain.Order{
					UserID:      userIDs[i],
					TotalAmount: decimal.RequireFromString("5.00"),
					Status:      domain.OrderStatusProcessing,
				}
				if err := tx.CreateOrder(ctx, order); err != nil {
					return err
				}
				if err := tx.AddOrderLines(ctx, order.ID, []*domain.OrderLine{{
					ProductID:    productID,
					Quantity:     1,
					PriceAtOrder: decimal.RequireFromString("5.00"),
				}}); err != nil {
					return err
				}
				if err := tx.ClearCart(ctx, userIDs[i]); err != nil {
					return err
				}
				return tx.Commit()
			}()
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range results {
		if err == nil {
			succeeded++
		} else if err != ErrInsufficientStock {
			t.Errorf("Checkout %d failed with unexpected error: %v", i, err)
		}
	}

	if succeeded != 1 {
		t.Errorf("Expected exactly one checkout to succeed, got %d (results: %v)", succeeded, results)
	}

	if stock := productStock(t, productID); stock != 0 {
		t.Errorf("Expected stock 0 after the race, got %d", stock)
	}
	if stock := productStock(t, productID); stock < 0 {
		t.Errorf("Stock went negative: %d", stock)
	}

	var orderCount int
	if err := testDB.QueryRow(
		"SELECT COUNT(*) FROM orders WHERE user_id = $1 OR user_id = $2",
		userIDs[0], userIDs[1],
	).Scan(&orderCount); err != nil {
		t.Fatalf("Failed to count orders: %v", err)
	}
	if orderCount != 1 {
		t.Errorf("Expected exactly one order, got %d", orderCount)
	}
}

func TestOrderHistoryRoundTrip(t *testing.T) {
	userID, productID := createCheckoutFixture(t, fmt.Sprintf("history-%d@example.com", time.Now().UnixNano()), 10, 2)
	store := NewCheckoutStore(testDB)
	orderRepo := NewOrderRepository(testDB)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	defer tx.Rollback()

	order := &domain.Order{
		UserID:      userID,
		TotalAmount: decimal.RequireFromString("10.00"),
		Status:      domain.OrderStatusProcessing,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	if err := tx.AddOrderLines(ctx, order.ID, []*domain.OrderLine{{
		ProductID:    productID,
		Quantity:     2,
		PriceAtOrder: decimal.RequireFromString("5.00"),
	}}); err != nil {
		t.Fatalf("Failed to add order lines: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	// Owner sees the order with its lines
	found, err := orderRepo.FindByID(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("Failed to find order: %v", err)
	}
	if !found.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Expected total 10.00, got %s", found.TotalAmount)
	}
	if len(found.Lines) != 1 {
		t.Fatalf("Expected 1 order line, got %d", len(found.Lines))
	}
	if !found.Lines[0].PriceAtOrder.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("Expected frozen price 5.00, got %s", found.Lines[0].PriceAtOrder)
	}

	// Another user cannot see it
	if _, err := orderRepo.FindByID(ctx, order.ID, userID+1); err != ErrOrderNotFound {
		t.Errorf("Expected ErrOrderNotFound for other user, got: %v", err)
	}

	orders, err := orderRepo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("Expected 1 order in history, got %d", len(orders))
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	userID, productID := createCheckoutFixture(t, fmt.Sprintf("status-%d@example.com", time.Now().UnixNano()), 10, 1)
	store := NewCheckoutStore(testDB)
	orderRepo := NewOrderRepository(testDB)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	defer tx.Rollback()

	order := &domain.Order{
		UserID:      userID,
		TotalAmount: decimal.RequireFromString("5.00"),
		Status:      domain.OrderStatusProcessing,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	if err := tx.AddOrderLines(ctx, order.ID, []*domain.OrderLine{{
		ProductID:    productID,
		Quantity:     1,
		PriceAtOrder: decimal.RequireFromString("5.00"),
	}}); err != nil {
		t.Fatalf("Failed to add order lines: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	// Processing -> Completed succeeds
	if err := orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusCompleted); err != nil {
		t.Fatalf("Failed to complete order: %v", err)
	}

	// Completed is final
	if err := orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled); err != ErrOrderFinalized {
		t.Errorf("Expected ErrOrderFinalized, got: %v", err)
	}

	// Missing orders are reported as such
	if err := orderRepo.UpdateStatus(ctx, 999999, domain.OrderStatusCompleted); err != ErrOrderNotFound {
		t.Errorf("Expected ErrOrderNotFound, got: %v", err)
	}
}

package service

import (
	"context"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogServiceForTest() (CatalogService, *mockProductRepository) {
	repo := newMockProductRepository()
	return NewCatalogService(repo), repo
}

func TestCreateProductRejectsNegativePrice(t *testing.T) {
	service, repo := newCatalogServiceForTest()

	err := service.CreateProduct(context.Background(), &domain.Product{
		Name:  "Widget",
		Price: decimal.RequireFromString("-0.01"),
		Stock: 1,
	})

	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Empty(t, repo.products)
}

func TestCreateProductRejectsNegativeStock(t *testing.T) {
	service, repo := newCatalogServiceForTest()

	err := service.CreateProduct(context.Background(), &domain.Product{
		Name:  "Widget",
		Price: decimal.RequireFromString("1.00"),
		Stock: -1,
	})

	assert.ErrorIs(t, err, ErrInvalidStock)
	assert.Empty(t, repo.products)
}

func TestCreateProductSetsTimestamps(t *testing.T) {
	service, _ := newCatalogServiceForTest()

	product := &domain.Product{
		Name:  "Widget",
		Price: decimal.RequireFromString("1.00"),
		Stock: 5,
	}
	require.NoError(t, service.CreateProduct(context.Background(), product))

	assert.NotZero(t, product.ID)
	assert.False(t, product.CreatedAt.IsZero())
	assert.Equal(t, product.CreatedAt, product.UpdatedAt)
}

func TestUpdateProductChangesOnlyProvidedFields(t *testing.T) {
	service, _ := newCatalogServiceForTest()
	ctx := context.Background()

	product := &domain.Product{
		Name:        "Widget",
		Description: "A widget",
		Price:       decimal.RequireFromString("1.00"),
		Stock:       5,
	}
	require.NoError(t, service.CreateProduct(ctx, product))

	newPrice := decimal.RequireFromString("2.50")
	updated, err := service.UpdateProduct(ctx, product.ID, ProductUpdate{Price: &newPrice})
	require.NoError(t, err)

	assert.True(t, updated.Price.Equal(newPrice))
	assert.Equal(t, "Widget", updated.Name)
	assert.Equal(t, "A widget", updated.Description)
	assert.Equal(t, 5, updated.Stock)
}

func TestUpdateProductRejectsNegativeValues(t *testing.T) {
	service, _ := newCatalogServiceForTest()
	ctx := context.Background()

	product := &domain.Product{
		Name:  "Widget",
		Price: decimal.RequireFromString("1.00"),
		Stock: 5,
	}
	require.NoError(t, service.CreateProduct(ctx, product))

	negativePrice := decimal.RequireFromString("-1.00")
	_, err := service.UpdateProduct(ctx, product.ID, ProductUpdate{Price: &negativePrice})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	negativeStock := -3
	_, err = service.UpdateProduct(ctx, product.ID, ProductUpdate{Stock: &negativeStock})
	assert.ErrorIs(t, err, ErrInvalidStock)

	// Original values survive the rejected updates
	reloaded, err := service.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Price.Equal(decimal.RequireFromString("1.00")))
	assert.Equal(t, 5, reloaded.Stock)
}

func TestUpdateMissingProduct(t *testing.T) {
	service, _ := newCatalogServiceForTest()

	name := "Ghost"
	_, err := service.UpdateProduct(context.Background(), 99, ProductUpdate{Name: &name})

	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestDeleteMissingProduct(t *testing.T) {
	service, _ := newCatalogServiceForTest()

	err := service.DeleteProduct(context.Background(), 99)

	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestListProductsClampsPagination(t *testing.T) {
	service, repo := newCatalogServiceForTest()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &domain.Product{
			Name:  "Widget",
			Price: decimal.RequireFromString("1.00"),
		}))
	}

	// Out-of-range page and page size fall back to defaults
	products, total, err := service.ListProducts(ctx, -1, 0, "name", repository.SortOrderAsc)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, products, 3)

	_, _, err = service.ListProducts(ctx, 1, 1000, "name", repository.SortOrderAsc)
	require.NoError(t, err)
}

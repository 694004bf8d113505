package catalog

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Product{}))
	return NewService(db)
}

func testProduct(name, category string, stock int) *Product {
	return &Product{
		Name:     name,
		Category: category,
		Price:    decimal.NewFromInt(99),
		Stock:    stock,
	}
}

func TestCreateProductAssignsPublicID(t *testing.T) {
	service := newTestService(t)

	product := testProduct("Widget", "tools", 10)
	require.NoError(t, service.CreateProduct(product))
	assert.NotZero(t, product.ProductID)

	got, err := service.GetProduct(product.ProductID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
	assert.Equal(t, 10, got.Stock)
}

func TestCreateProductValidation(t *testing.T) {
	service := newTestService(t)

	err := service.CreateProduct(testProduct("Widget", "tools", -1))
	assert.ErrorIs(t, err, types.ErrValidation)

	bad := testProduct("Widget", "tools", 1)
	bad.Price = decimal.NewFromInt(-5)
	err = service.CreateProduct(bad)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestGetProductMissing(t *testing.T) {
	service := newTestService(t)

	_, err := service.GetProduct(404)
	assert.ErrorIs(t, err, types.ErrProductNotFound)
}

func TestListProductsFilters(t *testing.T) {
	service := newTestService(t)

	require.NoError(t, service.CreateProduct(testProduct("Blue Widget", "tools", 5)))
	require.NoError(t, service.CreateProduct(testProduct("Red Widget", "tools", 5)))
	require.NoError(t, service.CreateProduct(testProduct("Gasket", "parts", 5)))

	all, err := service.ListProducts(ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	widgets, err := service.ListProducts(ListFilter{Name: "Widget"})
	require.NoError(t, err)
	assert.Len(t, widgets, 2)

	parts, err := service.ListProducts(ListFilter{Category: "parts"})
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "Gasket", parts[0].Name)

	none, err := service.ListProducts(ListFilter{Name: "Widget", Category: "parts"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReplaceProduct(t *testing.T) {
	service := newTestService(t)

	product := testProduct("Widget", "tools", 10)
	require.NoError(t, service.CreateProduct(product))

	replacement := testProduct("Widget Mk2", "hardware", 25)
	replacement.Price = decimal.NewFromInt(120)
	got, err := service.ReplaceProduct(product.ProductID, replacement)
	require.NoError(t, err)

	assert.Equal(t, "Widget Mk2", got.Name)
	assert.Equal(t, "hardware", got.Category)
	assert.Equal(t, 25, got.Stock)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, product.ProductID, got.ProductID)

	_, err = service.ReplaceProduct(999, replacement)
	assert.ErrorIs(t, err, types.ErrProductNotFound)
}

func TestPatchProductPartialFields(t *testing.T) {
	service := newTestService(t)

	product := testProduct("Widget", "tools", 10)
	require.NoError(t, service.CreateProduct(product))

	name := "Renamed Widget"
	price := decimal.NewFromInt(150)
	got, err := service.PatchProduct(product.ProductID, ProductPatch{Name: &name, Price: &price})
	require.NoError(t, err)

	assert.Equal(t, "Renamed Widget", got.Name)
	assert.True(t, got.Price.Equal(price))
	// Untouched fields survive.
	assert.Equal(t, "tools", got.Category)
	assert.Equal(t, 10, got.Stock)
}

func TestPatchProductEmptyBody(t *testing.T) {
	service := newTestService(t)

	product := testProduct("Widget", "tools", 10)
	require.NoError(t, service.CreateProduct(product))

	_, err := service.PatchProduct(product.ProductID, ProductPatch{})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestPatchProductStockOverwrite(t *testing.T) {
	service := newTestService(t)

	product := testProduct("Widget", "tools", 10)
	require.NoError(t, service.CreateProduct(product))

	// Stock writes are absolute, not deltas.
	stock := 3
	got, err := service.PatchProduct(product.ProductID, ProductPatch{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	negative := -1
	_, err = service.PatchProduct(product.ProductID, ProductPatch{Stock: &negative})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestPatchProductRejectedPatchLeavesProductUntouched(t *testing.T) {
	service := newTestService(t)

	product := testProduct("Widget", "tools", 10)
	require.NoError(t, service.CreateProduct(product))

	// A patch with a valid stock but an invalid price must not land half-way.
	stock := 3
	badPrice := decimal.NewFromInt(-5)
	_, err := service.PatchProduct(product.ProductID, ProductPatch{Stock: &stock, Price: &badPrice})
	require.ErrorIs(t, err, types.ErrValidation)

	got, err := service.GetProduct(product.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(99)))
	assert.Zero(t, got.Version)
}

func TestPatchProductConditionalStockWrite(t *testing.T) {
	service := newTestService(t)

	product := testProduct("Widget", "tools", 10)
	require.NoError(t, service.CreateProduct(product))

	stock := 7
	expected := 10
	got, err := service.PatchProduct(product.ProductID, ProductPatch{Stock: &stock, ExpectedStock: &expected})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	// A stale expectation loses; stock stays as it was.
	stale := 10
	next := 2
	_, err = service.PatchProduct(product.ProductID, ProductPatch{Stock: &next, ExpectedStock: &stale})
	assert.ErrorIs(t, err, types.ErrStockConflict)

	got, err = service.GetProduct(product.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
}

func TestDeleteProductTombstones(t *testing.T) {
	service := newTestService(t)

	product := testProduct("Widget", "tools", 10)
	require.NoError(t, service.CreateProduct(product))

	require.NoError(t, service.DeleteProduct(product.ProductID))

	_, err := service.GetProduct(product.ProductID)
	assert.ErrorIs(t, err, types.ErrProductNotFound)

	listed, err := service.ListProducts(ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	// A second delete reports the tombstone as missing.
	assert.ErrorIs(t, service.DeleteProduct(product.ProductID), types.ErrProductNotFound)
}

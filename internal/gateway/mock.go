package gateway

import (
	"context"

	"storefront/internal/model"
)

// Mock implements Gateway for testing.
// Each method can be configured via function fields.
type Mock struct {
	CreateCartFunc          func(ctx context.Context, lines []model.LineInput) (*model.Cart, error)
	AddLinesFunc            func(ctx context.Context, cartID string, lines []model.LineInput) (*model.Cart, error)
	UpdateLinesFunc         func(ctx context.Context, cartID string, updates []model.LineUpdate) (*model.Cart, error)
	GetCartFunc             func(ctx context.Context, cartID string) (*model.Cart, error)
	GetVariantInventoryFunc func(ctx context.Context, variantID string) (*model.VariantInventory, error)
	SearchProductsFunc      func(ctx context.Context, query string, limit int) ([]model.Product, error)
	ListProductsFunc        func(ctx context.Context, limit int) ([]model.Product, error)
	GetCollectionFunc       func(ctx context.Context, handle string, limit int) (*model.Collection, error)
}

// CreateCart calls the configured CreateCartFunc or returns an error.
func (m *Mock) CreateCart(ctx context.Context, lines []model.LineInput) (*model.Cart, error) {
	if m.CreateCartFunc != nil {
		return m.CreateCartFunc(ctx, lines)
	}
	return nil, model.NewInternalError(nil)
}

// AddLines calls the configured AddLinesFunc or returns an error.
func (m *Mock) AddLines(ctx context.Context, cartID string, lines []model.LineInput) (*model.Cart, error) {
	if m.AddLinesFunc != nil {
		return m.AddLinesFunc(ctx, cartID, lines)
	}
	return nil, model.NewNotFoundError("cart")
}

// UpdateLines calls the configured UpdateLinesFunc or returns an error.
func (m *Mock) UpdateLines(ctx context.Context, cartID string, updates []model.LineUpdate) (*model.Cart, error) {
	if m.UpdateLinesFunc != nil {
		return m.UpdateLinesFunc(ctx, cartID, updates)
	}
	return nil, model.NewNotFoundError("cart")
}

// GetCart calls the configured GetCartFunc or returns an error.
func (m *Mock) GetCart(ctx context.Context, cartID string) (*model.Cart, error) {
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx, cartID)
	}
	return nil, model.NewNotFoundError("cart")
}

// GetVariantInventory calls the configured GetVariantInventoryFunc or
// reports the variant as available with untracked stock.
func (m *Mock) GetVariantInventory(ctx context.Context, variantID string) (*model.VariantInventory, error) {
	if m.GetVariantInventoryFunc != nil {
		return m.GetVariantInventoryFunc(ctx, variantID)
	}
	return &model.VariantInventory{VariantID: variantID, AvailableForSale: true}, nil
}

// SearchProducts calls the configured SearchProductsFunc or returns no results.
func (m *Mock) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	if m.SearchProductsFunc != nil {
		return m.SearchProductsFunc(ctx, query, limit)
	}
	return nil, nil
}

// ListProducts calls the configured ListProductsFunc or returns no products.
func (m *Mock) ListProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx, limit)
	}
	return nil, nil
}

// GetCollection calls the configured GetCollectionFunc or returns an error.
func (m *Mock) GetCollection(ctx context.Context, handle string, limit int) (*model.Collection, error) {
	if m.GetCollectionFunc != nil {
		return m.GetCollectionFunc(ctx, handle, limit)
	}
	return nil, model.NewNotFoundError("collection")
}

// Verify Mock implements Gateway interface at compile time.
var _ Gateway = (*Mock)(nil)

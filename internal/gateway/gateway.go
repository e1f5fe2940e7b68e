// Package gateway defines the contract with the remote commerce platform.
// The platform owns carts, pricing and inventory; the storefront only holds
// references to its state.
package gateway

import (
	"context"

	"storefront/internal/model"
)

// Gateway abstracts the remote commerce platform.
//
// Mutations return the full cart as the platform sees it afterwards.
// Business-rule rejections surface as model.ErrGatewayBusiness, unreachable
// or malformed responses as model.ErrUpstreamError, and unknown carts or
// collections as model.ErrNotFound.
type Gateway interface {
	// CreateCart creates a cart holding lines.
	CreateCart(ctx context.Context, lines []model.LineInput) (*model.Cart, error)

	// AddLines appends new lines to an existing cart.
	AddLines(ctx context.Context, cartID string, lines []model.LineInput) (*model.Cart, error)

	// UpdateLines sets absolute quantities on existing lines.
	// Quantity zero removes a line.
	UpdateLines(ctx context.Context, cartID string, updates []model.LineUpdate) (*model.Cart, error)

	// GetCart reads a cart by id.
	GetCart(ctx context.Context, cartID string) (*model.Cart, error)

	// GetVariantInventory reads live stock for one variant.
	GetVariantInventory(ctx context.Context, variantID string) (*model.VariantInventory, error)

	// SearchProducts runs a full-text product query.
	SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error)

	// ListProducts returns the first limit catalog products.
	ListProducts(ctx context.Context, limit int) ([]model.Product, error)

	// GetCollection reads a collection and its first limit products.
	GetCollection(ctx context.Context, handle string, limit int) (*model.Collection, error)
}

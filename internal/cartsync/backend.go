package cartsync

import (
	"context"

	"storefront/internal/cart"
	"storefront/internal/model"
)

// Backend executes cart operations on the engine's behalf. Implementations
// refresh per-line inventory before returning.
type Backend interface {
	AddItems(ctx context.Context, items []model.LineInput, cartID string) (*model.Cart, error)
	UpdateLines(ctx context.Context, cartID string, lines []model.LineUpdate) (*model.Cart, error)
	GetCart(ctx context.Context, cartID string) (*model.Cart, error)
}

// ServiceBackend runs the engine in-process against a cart.Service.
type ServiceBackend struct {
	Service *cart.Service
}

func (b ServiceBackend) AddItems(ctx context.Context, items []model.LineInput, cartID string) (*model.Cart, error) {
	res, err := b.Service.AddItems(ctx, items, cartID)
	if err != nil {
		return nil, err
	}
	return res.Cart, nil
}

func (b ServiceBackend) UpdateLines(ctx context.Context, cartID string, lines []model.LineUpdate) (*model.Cart, error) {
	res, err := b.Service.UpdateLines(ctx, cartID, lines)
	if err != nil {
		return nil, err
	}
	return res.Cart, nil
}

func (b ServiceBackend) GetCart(ctx context.Context, cartID string) (*model.Cart, error) {
	res, err := b.Service.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return res.Cart, nil
}

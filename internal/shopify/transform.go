package shopify

import (
	"errors"
	"fmt"

	"storefront/internal/model"
)

// errMissingField marks a response that parsed as JSON but lacks a field
// the service depends on.
var errMissingField = errors.New("missing required field")

func toCart(c *gqlCart) (*model.Cart, error) {
	if c == nil || c.ID == "" {
		return nil, fmt.Errorf("cart.id: %w", errMissingField)
	}

	subtotal, err := toMoney(c.Cost.SubtotalAmount)
	if err != nil {
		return nil, fmt.Errorf("cart.cost.subtotalAmount: %w", err)
	}
	total, err := toMoney(c.Cost.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("cart.cost.totalAmount: %w", err)
	}

	out := &model.Cart{
		ID:            c.ID,
		CheckoutURL:   c.CheckoutURL,
		TotalQuantity: c.TotalQuantity,
		Cost:          model.CartCost{Subtotal: subtotal, Total: total},
		Lines:         make([]model.CartLine, 0, len(c.Lines.Edges)),
	}
	for i, edge := range c.Lines.Edges {
		line, err := toCartLine(edge.Node)
		if err != nil {
			return nil, fmt.Errorf("cart.lines[%d]: %w", i, err)
		}
		out.Lines = append(out.Lines, line)
	}
	return out, nil
}

func toCartLine(n gqlCartLine) (model.CartLine, error) {
	if n.ID == "" {
		return model.CartLine{}, fmt.Errorf("id: %w", errMissingField)
	}
	m := n.Merchandise
	if m.Typename != "" && m.Typename != "ProductVariant" {
		return model.CartLine{}, fmt.Errorf("merchandise: unsupported type %q", m.Typename)
	}
	if m.ID == "" {
		return model.CartLine{}, fmt.Errorf("merchandise.id: %w", errMissingField)
	}
	price, err := toMoney(m.Price)
	if err != nil {
		return model.CartLine{}, fmt.Errorf("merchandise.price: %w", err)
	}

	img := toImage(m.Image)
	if img == nil {
		img = toImage(m.Product.FeaturedImage)
	}

	return model.CartLine{
		ID:                n.ID,
		VariantID:         m.ID,
		Title:             m.Product.Title,
		VariantTitle:      variantTitle(m.Title),
		Handle:            m.Product.Handle,
		Quantity:          n.Quantity,
		Price:             price,
		Image:             img,
		AvailableForSale:  m.AvailableForSale,
		QuantityAvailable: m.QuantityAvailable,
	}, nil
}

// variantTitle drops the placeholder title Shopify gives single-variant products.
func variantTitle(t string) string {
	if t == "Default Title" {
		return ""
	}
	return t
}

func toProduct(p gqlProduct) (model.Product, error) {
	if p.ID == "" {
		return model.Product{}, fmt.Errorf("product.id: %w", errMissingField)
	}
	out := model.Product{
		ID:          p.ID,
		Title:       p.Title,
		Handle:      p.Handle,
		Description: p.Description,
		Image:       toImage(p.FeaturedImage),
		Tags:        p.Tags,
		ProductType: p.ProductType,
	}
	if len(p.Variants.Edges) > 0 {
		v := p.Variants.Edges[0].Node
		price, err := toMoney(v.Price)
		if err != nil {
			return model.Product{}, fmt.Errorf("product %s price: %w", p.ID, err)
		}
		out.Price = price
		out.VariantID = v.ID
		out.AvailableForSale = v.AvailableForSale
		out.QuantityAvailable = v.QuantityAvailable
	}
	return out, nil
}

func toProducts(conn *productConnection) ([]model.Product, error) {
	if conn == nil {
		return nil, fmt.Errorf("products: %w", errMissingField)
	}
	out := make([]model.Product, 0, len(conn.Edges))
	for _, edge := range conn.Edges {
		p, err := toProduct(edge.Node)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toMoney(m gqlMoney) (model.Money, error) {
	return model.ParseMoney(m.Amount, m.CurrencyCode)
}

func toImage(img *gqlImage) *model.Image {
	if img == nil || img.URL == "" {
		return nil
	}
	out := &model.Image{URL: img.URL}
	if img.AltText != nil {
		out.AltText = *img.AltText
	}
	return out
}

func toUserErrors(in []gqlUserError) []model.UserError {
	out := make([]model.UserError, 0, len(in))
	for _, ue := range in {
		out = append(out, model.UserError{Field: ue.Field, Message: ue.Message, Code: ue.Code})
	}
	return out
}

package model

// Cart is the gateway's view of a cart after a read or mutation.
// Lines are in gateway order.
type Cart struct {
	ID            string     `json:"id"`
	CheckoutURL   string     `json:"checkoutUrl"`
	TotalQuantity int        `json:"totalQuantity"`
	Cost          CartCost   `json:"cost"`
	Lines         []CartLine `json:"lines"`
}

// CartCost holds totals computed by the gateway.
type CartCost struct {
	Subtotal Money `json:"subtotal"`
	Total    Money `json:"total"`
}

// CartLine is one line of a cart. VariantID is unique within a cart.
type CartLine struct {
	ID               string `json:"lineId"`
	VariantID        string `json:"variantId"`
	Title            string `json:"title"`
	VariantTitle     string `json:"variantTitle,omitempty"`
	Handle           string `json:"handle"`
	Quantity         int    `json:"quantity"`
	Price            Money  `json:"price"`
	Image            *Image `json:"image,omitempty"`
	AvailableForSale bool   `json:"availableForSale"`

	// QuantityAvailable is nil when the gateway does not track stock
	// for the variant or the last refresh failed.
	QuantityAvailable *int `json:"quantityAvailable,omitempty"`
}

// Image is a product image reference.
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
}

// LineInput asks for quantity units of a variant to be added.
type LineInput struct {
	VariantID string `json:"variantId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// LineUpdate sets an existing line to an absolute quantity.
// Quantity zero removes the line.
type LineUpdate struct {
	LineID   string `json:"lineId" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// UserError is a business-rule rejection reported by the gateway.
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// VariantInventory is the live stock view of one variant.
type VariantInventory struct {
	VariantID         string `json:"variantId"`
	AvailableForSale  bool   `json:"availableForSale"`
	QuantityAvailable *int   `json:"quantityAvailable,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

package model

// Cart actions accepted by POST /cart.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionRemove = "remove"
	ActionClear  = "clear"
	ActionGet    = "get"
)

// CartActionRequest is the POST /cart payload.
type CartActionRequest struct {
	Action string         `json:"action" validate:"required,oneof=add update remove clear get"`
	CartID string         `json:"cartId,omitempty"`
	Items  []CartItemInput `json:"items,omitempty"`
}

// CartItemInput is one item of a cart action. Add reads VariantID. Update
// and remove read LineID, falling back to VariantID for older clients that
// sent the line id under that name.
type CartItemInput struct {
	VariantID string `json:"variantId,omitempty"`
	LineID    string `json:"lineId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// TargetLineID returns the line id an update or remove item refers to.
func (i CartItemInput) TargetLineID() string {
	if i.LineID != "" {
		return i.LineID
	}
	return i.VariantID
}

// CartResponse is the success body of the cart endpoints.
type CartResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	CartID      string `json:"cartId"`
	CheckoutURL string `json:"checkoutUrl"`
	Cart        *Cart  `json:"cart"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool          `json:"success"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message"`
	Errors  []ErrorDetail `json:"errors,omitempty"`
}

// SearchResponse is the GET /search body.
type SearchResponse struct {
	Success  bool      `json:"success"`
	Products []Product `json:"products"`
	Query    string    `json:"query"`
}

// ProductsResponse is the GET /products body.
type ProductsResponse struct {
	Success  bool      `json:"success"`
	Products []Product `json:"products"`
	Count    int       `json:"count"`
}

// CollectionSummary is a collection without its products.
type CollectionSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// FeaturedResponse is the GET /featured body.
type FeaturedResponse struct {
	Success    bool              `json:"success"`
	Collection CollectionSummary `json:"collection"`
	Products   []Product         `json:"products"`
	Count      int               `json:"count"`
}

// RepairResponse is the POST /repairs body.
type RepairResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	EmailSent bool   `json:"emailSent"`
}

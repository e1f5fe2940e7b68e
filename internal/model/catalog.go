package model

// Product is the catalog projection shared by search, listing and
// featured endpoints.
type Product struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Handle            string   `json:"handle"`
	Description       string   `json:"description,omitempty"`
	Image             *Image   `json:"image,omitempty"`
	Price             Money    `json:"price"`
	VariantID         string   `json:"variantId,omitempty"`
	AvailableForSale  bool     `json:"availableForSale"`
	QuantityAvailable *int     `json:"quantityAvailable,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	ProductType       string   `json:"productType,omitempty"`
}

// Collection is a named, curated product list.
type Collection struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Products    []Product `json:"products"`
}

package shopify

import "encoding/json"

// =============================================================================
// STOREFRONT API WIRE TYPES
// =============================================================================
//
// Responses are decoded into these structs at the boundary and converted to
// model types in transform.go. Nothing untyped crosses into the rest of the
// service.
// =============================================================================

// graphQLRequest is the POST body for every Storefront call.
type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the top-level envelope. Data stays raw until the
// envelope has been checked for errors.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// === Shared ===

type gqlMoney struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type gqlImage struct {
	URL     string  `json:"url"`
	AltText *string `json:"altText"`
}

type gqlUserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

// === Cart ===

type gqlCart struct {
	ID            string `json:"id"`
	CheckoutURL   string `json:"checkoutUrl"`
	TotalQuantity int    `json:"totalQuantity"`
	Cost          struct {
		SubtotalAmount gqlMoney `json:"subtotalAmount"`
		TotalAmount    gqlMoney `json:"totalAmount"`
	} `json:"cost"`
	Lines struct {
		Edges []struct {
			Node gqlCartLine `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

type gqlCartLine struct {
	ID          string         `json:"id"`
	Quantity    int            `json:"quantity"`
	Merchandise gqlMerchandise `json:"merchandise"`
}

type gqlMerchandise struct {
	Typename          string    `json:"__typename"`
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	AvailableForSale  bool      `json:"availableForSale"`
	QuantityAvailable *int      `json:"quantityAvailable"`
	Price             gqlMoney  `json:"price"`
	Image             *gqlImage `json:"image"`
	Product           struct {
		Title         string    `json:"title"`
		Handle        string    `json:"handle"`
		FeaturedImage *gqlImage `json:"featuredImage"`
	} `json:"product"`
}

// cartPayload is the common shape of cartCreate, cartLinesAdd and
// cartLinesUpdate results.
type cartPayload struct {
	Cart       *gqlCart       `json:"cart"`
	UserErrors []gqlUserError `json:"userErrors"`
}

type cartCreateData struct {
	CartCreate *cartPayload `json:"cartCreate"`
}

type cartLinesAddData struct {
	CartLinesAdd *cartPayload `json:"cartLinesAdd"`
}

type cartLinesUpdateData struct {
	CartLinesUpdate *cartPayload `json:"cartLinesUpdate"`
}

type cartData struct {
	Cart *gqlCart `json:"cart"`
}

// === Mutation inputs ===

type cartLineInput struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

type cartLineUpdateInput struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// === Catalog ===

type gqlVariantNode struct {
	Typename          string `json:"__typename"`
	ID                string `json:"id"`
	AvailableForSale  bool   `json:"availableForSale"`
	QuantityAvailable *int   `json:"quantityAvailable"`
}

type variantData struct {
	Node *gqlVariantNode `json:"node"`
}

type gqlProduct struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Handle        string    `json:"handle"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	ProductType   string    `json:"productType"`
	FeaturedImage *gqlImage `json:"featuredImage"`
	Variants      struct {
		Edges []struct {
			Node struct {
				ID                string   `json:"id"`
				AvailableForSale  bool     `json:"availableForSale"`
				QuantityAvailable *int     `json:"quantityAvailable"`
				Price             gqlMoney `json:"price"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

type productConnection struct {
	Edges []struct {
		Node gqlProduct `json:"node"`
	} `json:"edges"`
}

type productsData struct {
	Products *productConnection `json:"products"`
}

type collectionData struct {
	Collection *struct {
		ID          string            `json:"id"`
		Handle      string            `json:"handle"`
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Products    productConnection `json:"products"`
	} `json:"collection"`
}

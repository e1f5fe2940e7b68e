// MCP transport for the storefront using the official MCP Go SDK.
// Exposes cart and search operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront/internal/model"
)

// === MCP Tool Input Types ===

// GetCartInput is the input schema for get_cart.
type GetCartInput struct {
	CartID string `json:"cartId" jsonschema:"cart ID returned by add_to_cart"`
}

// AddToCartInput is the input schema for add_to_cart.
type AddToCartInput struct {
	CartID string            `json:"cartId,omitempty" jsonschema:"existing cart ID; omit to create a new cart"`
	Items  []model.LineInput `json:"items" jsonschema:"variants and quantities to add"`
}

// UpdateCartLineInput is the input schema for update_cart_line.
type UpdateCartLineInput struct {
	CartID   string `json:"cartId" jsonschema:"cart ID"`
	LineID   string `json:"lineId" jsonschema:"cart line ID (not the variant ID)"`
	Quantity int    `json:"quantity" jsonschema:"new absolute quantity; 0 removes the line"`
}

// ClearCartInput is the input schema for clear_cart.
type ClearCartInput struct {
	CartID string `json:"cartId" jsonschema:"cart ID"`
}

// SearchProductsInput is the input schema for search_products.
type SearchProductsInput struct {
	Query string `json:"query" jsonschema:"search text"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum results (default 10, max 50)"`
}

// NewMCPServer creates an MCP server with the storefront tools registered.
// The tools run the same operations as the REST endpoints.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Collectibles storefront. Search products, then build a cart " +
				"with add_to_cart and finish at the returned checkoutUrl.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get a cart with live inventory for every line.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add variants to a cart. Creates a cart when cartId is omitted. Variants already in the cart have their quantities increased.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_cart_line",
		Description: "Set the quantity of one cart line. Quantity 0 removes the line.",
	}, h.mcpUpdateCartLine)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Remove every line from a cart.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_products",
		Description: "Full-text product search.",
	}, h.mcpSearchProducts)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, any, error) {
	return h.mcpCartAction(ctx, &model.CartActionRequest{Action: model.ActionGet, CartID: input.CartID})
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, any, error) {
	items := make([]model.CartItemInput, 0, len(input.Items))
	for _, it := range input.Items {
		items = append(items, model.CartItemInput{VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return h.mcpCartAction(ctx, &model.CartActionRequest{
		Action: model.ActionAdd,
		CartID: input.CartID,
		Items:  items,
	})
}

func (h *Handler) mcpUpdateCartLine(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateCartLineInput,
) (*mcp.CallToolResult, any, error) {
	return h.mcpCartAction(ctx, &model.CartActionRequest{
		Action: model.ActionUpdate,
		CartID: input.CartID,
		Items:  []model.CartItemInput{{LineID: input.LineID, Quantity: input.Quantity}},
	})
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ClearCartInput,
) (*mcp.CallToolResult, any, error) {
	return h.mcpCartAction(ctx, &model.CartActionRequest{Action: model.ActionClear, CartID: input.CartID})
}

func (h *Handler) mcpSearchProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchProductsInput,
) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, nil, h.mcpError(model.NewValidationError("query", "is required"))
	}
	limit := input.Limit
	if limit <= 0 {
		limit = searchDefaultLimit
	}
	limit = min(limit, searchMaxLimit)

	products, err := h.catalog.SearchProducts(ctx, query, limit)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return nil, model.SearchResponse{Success: true, Products: products, Query: query}, nil
}

func (h *Handler) mcpCartAction(ctx context.Context, req *model.CartActionRequest) (*mcp.CallToolResult, any, error) {
	res, err := h.runCartAction(ctx, req)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, cartResponse(res), nil
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}

// Package shopify implements gateway.Gateway against the Shopify Storefront
// GraphQL API.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/metrics"
	"storefront/internal/model"
)

// =============================================================================
// STOREFRONT API CLIENT
// =============================================================================
//
// Every call is a POST of {query, variables} to
//   https://{store}/api/{version}/graphql.json
// authenticated with the X-Shopify-Storefront-Access-Token header.
//
// Error mapping:
//   - network failure, non-2xx, top-level GraphQL errors → ErrUpstreamError
//   - THROTTLED / HTTP 429                              → ErrRateLimited
//   - userErrors on a mutation (even on HTTP 200)       → ErrGatewayBusiness
//   - unknown cart or collection                        → ErrNotFound
//   - payload that does not match the wire structs      → decode error (upstream)
// =============================================================================

const (
	serviceName = "Shopify"
	userAgent   = "Storefront/1.0"

	// DefaultAPIVersion is the Storefront API version used when none is configured.
	DefaultAPIVersion = "2024-01"

	maxResponseBytes = 4 << 20

	// maxErrorBody bounds how much of a non-GraphQL error body reaches the error text.
	maxErrorBody = 200
)

// Options configures a Client.
type Options struct {
	StoreDomain string // e.g. "my-shop.myshopify.com"
	APIVersion  string
	Token       string // Storefront API access token

	// Endpoint overrides the URL derived from StoreDomain and APIVersion.
	Endpoint string

	Transport http.RoundTripper
	Timeout   time.Duration
	Logger    *slog.Logger
	Metrics   *metrics.Gateway
}

// Client is the Storefront API HTTP client.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	logger     *slog.Logger
	metrics    *metrics.Gateway
}

// NewClient creates a new Storefront API client.
func NewClient(opts Options) *Client {
	version := opts.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/api/%s/graphql.json", opts.StoreDomain, version)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: opts.Transport},
		endpoint:   endpoint,
		token:      opts.Token,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// Verify Client implements Gateway interface at compile time.
var _ gateway.Gateway = (*Client)(nil)

// === Cart Operations ===

// CreateCart creates a cart holding lines.
func (c *Client) CreateCart(ctx context.Context, lines []model.LineInput) (*model.Cart, error) {
	vars := map[string]any{
		"input": map[string]any{"lines": toLineInputs(lines)},
	}
	var data cartCreateData
	if err := c.do(ctx, "cartCreate", cartCreateMutation, vars, &data); err != nil {
		return nil, err
	}
	return cartFromPayload(data.CartCreate)
}

// AddLines appends new lines to an existing cart.
func (c *Client) AddLines(ctx context.Context, cartID string, lines []model.LineInput) (*model.Cart, error) {
	vars := map[string]any{
		"cartId": cartID,
		"lines":  toLineInputs(lines),
	}
	var data cartLinesAddData
	if err := c.do(ctx, "cartLinesAdd", cartLinesAddMutation, vars, &data); err != nil {
		return nil, err
	}
	return cartFromPayload(data.CartLinesAdd)
}

// UpdateLines sets absolute quantities on existing lines.
func (c *Client) UpdateLines(ctx context.Context, cartID string, updates []model.LineUpdate) (*model.Cart, error) {
	lines := make([]cartLineUpdateInput, 0, len(updates))
	for _, u := range updates {
		lines = append(lines, cartLineUpdateInput{ID: u.LineID, Quantity: u.Quantity})
	}
	vars := map[string]any{
		"cartId": cartID,
		"lines":  lines,
	}
	var data cartLinesUpdateData
	if err := c.do(ctx, "cartLinesUpdate", cartLinesUpdateMutation, vars, &data); err != nil {
		return nil, err
	}
	return cartFromPayload(data.CartLinesUpdate)
}

// GetCart reads a cart by id. A null cart means the id no longer resolves.
func (c *Client) GetCart(ctx context.Context, cartID string) (*model.Cart, error) {
	var data cartData
	if err := c.do(ctx, "cart", cartQuery, map[string]any{"cartId": cartID}, &data); err != nil {
		return nil, err
	}
	if data.Cart == nil {
		return nil, model.NewNotFoundError("cart")
	}
	cart, err := toCart(data.Cart)
	if err != nil {
		return nil, model.NewDecodeError(serviceName, err)
	}
	return cart, nil
}

// GetVariantInventory reads live stock for one variant.
func (c *Client) GetVariantInventory(ctx context.Context, variantID string) (*model.VariantInventory, error) {
	var data variantData
	if err := c.do(ctx, "variantInventory", variantInventoryQuery, map[string]any{"id": variantID}, &data); err != nil {
		return nil, err
	}
	if data.Node == nil || data.Node.Typename != "ProductVariant" {
		return nil, model.NewNotFoundError("variant")
	}
	return &model.VariantInventory{
		VariantID:         data.Node.ID,
		AvailableForSale:  data.Node.AvailableForSale,
		QuantityAvailable: data.Node.QuantityAvailable,
	}, nil
}

// === Catalog Operations ===

// SearchProducts runs a full-text product query.
func (c *Client) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	var data productsData
	vars := map[string]any{"query": query, "first": limit}
	if err := c.do(ctx, "searchProducts", searchProductsQuery, vars, &data); err != nil {
		return nil, err
	}
	products, err := toProducts(data.Products)
	if err != nil {
		return nil, model.NewDecodeError(serviceName, err)
	}
	return products, nil
}

// ListProducts returns the most recently updated products.
func (c *Client) ListProducts(ctx context.Context, limit int) ([]model.Product, error) {
	var data productsData
	if err := c.do(ctx, "listProducts", listProductsQuery, map[string]any{"first": limit}, &data); err != nil {
		return nil, err
	}
	products, err := toProducts(data.Products)
	if err != nil {
		return nil, model.NewDecodeError(serviceName, err)
	}
	return products, nil
}

// GetCollection reads a collection by handle.
func (c *Client) GetCollection(ctx context.Context, handle string, limit int) (*model.Collection, error) {
	var data collectionData
	vars := map[string]any{"handle": handle, "first": limit}
	if err := c.do(ctx, "collection", collectionQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Collection == nil {
		return nil, model.NewNotFoundError("collection")
	}
	products, err := toProducts(&data.Collection.Products)
	if err != nil {
		return nil, model.NewDecodeError(serviceName, err)
	}
	return &model.Collection{
		ID:          data.Collection.ID,
		Handle:      data.Collection.Handle,
		Title:       data.Collection.Title,
		Description: data.Collection.Description,
		Products:    products,
	}, nil
}

// === Helpers ===

func toLineInputs(lines []model.LineInput) []cartLineInput {
	out := make([]cartLineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, cartLineInput{MerchandiseID: l.VariantID, Quantity: l.Quantity})
	}
	return out
}

// cartFromPayload checks userErrors before trusting the cart.
func cartFromPayload(p *cartPayload) (*model.Cart, error) {
	if p == nil {
		return nil, model.NewDecodeError(serviceName, fmt.Errorf("mutation payload: %w", errMissingField))
	}
	if len(p.UserErrors) > 0 {
		if cartMissing(p.UserErrors) {
			return nil, model.NewNotFoundError("cart")
		}
		return nil, model.NewGatewayBusinessError(toUserErrors(p.UserErrors))
	}
	cart, err := toCart(p.Cart)
	if err != nil {
		return nil, model.NewDecodeError(serviceName, err)
	}
	return cart, nil
}

// cartMissing reports whether the gateway rejected the cart id itself.
func cartMissing(errs []gqlUserError) bool {
	for _, ue := range errs {
		if len(ue.Field) == 1 && ue.Field[0] == "cartId" {
			return true
		}
		if ue.Code == "NOT_FOUND" || ue.Code == "CART_DOES_NOT_EXIST" {
			return true
		}
	}
	return false
}

// do executes a GraphQL operation and decodes data into result.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, result any) (err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		c.metrics.Observe(op, elapsed, err)
		if err != nil {
			c.logger.WarnContext(ctx, "gateway request failed",
				slog.String("operation", op),
				slog.Duration("duration", elapsed),
				slog.String("error", err.Error()),
			)
			return
		}
		c.logger.DebugContext(ctx, "gateway request",
			slog.String("operation", op),
			slog.Duration("duration", elapsed),
		)
	}()

	body, err := json.Marshal(graphQLRequest{Query: query, OperationName: op, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError(serviceName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.NewUpstreamError(serviceName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, raw)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return model.NewDecodeError(serviceName, err)
	}
	if len(envelope.Errors) > 0 {
		return graphQLErrors(envelope.Errors)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return model.NewDecodeError(serviceName, fmt.Errorf("data: %w", errMissingField))
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return model.NewDecodeError(serviceName, err)
	}
	return nil
}

// parseError maps a non-2xx response to an APIError.
func parseError(status int, body []byte) error {
	if status == http.StatusTooManyRequests {
		return model.NewRateLimitError(serviceName)
	}

	var envelope graphQLResponse
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
		return model.NewUpstreamError(serviceName, fmt.Errorf("HTTP %d: %s", status, envelope.Errors[0].Message))
	}

	msg := truncate(strings.TrimSpace(string(body)), maxErrorBody)
	return model.NewUpstreamError(serviceName, fmt.Errorf("HTTP %d: %s", status, msg))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// graphQLErrors maps top-level GraphQL errors returned with HTTP 200.
func graphQLErrors(errs []graphQLError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Extensions.Code == "THROTTLED" {
			return model.NewRateLimitError(serviceName)
		}
		msgs = append(msgs, e.Message)
	}
	return model.NewUpstreamError(serviceName, fmt.Errorf("graphql: %s", strings.Join(msgs, "; ")))
}

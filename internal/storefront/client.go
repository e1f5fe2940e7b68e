// Package storefront is a typed client for the storefront server's local
// HTTP surface. It backs the terminal client's cart engine and search
// session.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/cache"
	"storefront/internal/cartsync"
	"storefront/internal/model"
)

const (
	serviceName = "storefront"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL    string // e.g. "http://localhost:8080"
	HTTPClient *http.Client
	Timeout    time.Duration // Ignored when HTTPClient is set
	Logger     *slog.Logger
}

// Client calls the storefront HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the server at opts.BaseURL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("storefront: invalid base URL %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: hc,
		logger:     logger,
	}, nil
}

// Verify Client implements the engine backend at compile time.
var _ cartsync.Backend = (*Client)(nil)

// === Cart Operations ===

// AddItems adds items to cartID, creating a cart when cartID is empty.
func (c *Client) AddItems(ctx context.Context, items []model.LineInput, cartID string) (*model.Cart, error) {
	req := model.CartActionRequest{Action: model.ActionAdd, CartID: cartID}
	for _, it := range items {
		req.Items = append(req.Items, model.CartItemInput{VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return c.cartAction(ctx, req)
}

// UpdateLines sets absolute quantities on existing lines.
func (c *Client) UpdateLines(ctx context.Context, cartID string, lines []model.LineUpdate) (*model.Cart, error) {
	req := model.CartActionRequest{Action: model.ActionUpdate, CartID: cartID}
	for _, l := range lines {
		req.Items = append(req.Items, model.CartItemInput{LineID: l.LineID, Quantity: l.Quantity})
	}
	return c.cartAction(ctx, req)
}

// GetCart reads a cart with refreshed inventory.
func (c *Client) GetCart(ctx context.Context, cartID string) (*model.Cart, error) {
	var resp model.CartResponse
	q := url.Values{"cartId": {cartID}}
	if err := c.do(ctx, http.MethodGet, "/cart", q, nil, &resp); err != nil {
		return nil, err
	}
	return cartFrom(resp)
}

func (c *Client) cartAction(ctx context.Context, req model.CartActionRequest) (*model.Cart, error) {
	var resp model.CartResponse
	if err := c.do(ctx, http.MethodPost, "/cart", nil, req, &resp); err != nil {
		return nil, err
	}
	return cartFrom(resp)
}

func cartFrom(resp model.CartResponse) (*model.Cart, error) {
	if resp.Cart == nil {
		return nil, model.NewDecodeError(serviceName, errors.New("response has no cart"))
	}
	return resp.Cart, nil
}

// === Catalog Operations ===

// Search runs a product search. It satisfies search.Searcher.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.Product, error) {
	var resp model.SearchResponse
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// ListProducts lists catalog products.
func (c *Client) ListProducts(ctx context.Context, limit int) ([]model.Product, error) {
	var resp model.ProductsResponse
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if err := c.do(ctx, http.MethodGet, "/products", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// Featured reads the featured collection.
func (c *Client) Featured(ctx context.Context, limit int) (*model.FeaturedResponse, error) {
	var resp model.FeaturedResponse
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if err := c.do(ctx, http.MethodGet, "/featured", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// === HTTP ===

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return model.NewInternalError(fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return model.NewInternalError(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "storefront request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError(serviceName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.NewUpstreamError(serviceName, fmt.Errorf("reading response: %w", err))
	}

	attrs := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	}
	if h := resp.Header.Get(cache.HeaderName); h != "" {
		if st, err := cache.ParseStatus(h); err == nil {
			attrs = append(attrs, slog.Bool("cache_hit", st.Hit))
		}
	}
	c.logger.DebugContext(ctx, "storefront request", attrs...)

	if resp.StatusCode >= 300 {
		return errorFromResponse(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return model.NewDecodeError(serviceName, err)
	}
	return nil
}

// errorFromResponse rebuilds the taxonomy error the server reported so
// callers can classify it with the model predicates.
func errorFromResponse(status int, data []byte) error {
	var body model.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = fmt.Sprintf("%s returned HTTP %d", serviceName, status)
	}

	apiErr := &model.APIError{
		Code:       body.Code,
		Message:    body.Message,
		Details:    body.Errors,
		StatusCode: status,
	}
	switch {
	case status == http.StatusBadRequest:
		apiErr.Err = model.ErrInvalidRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.Err = model.ErrUnauthorized
	case status == http.StatusNotFound:
		apiErr.Err = model.ErrNotFound
	case status == http.StatusUnprocessableEntity:
		apiErr.Err = model.ErrGatewayBusiness
	case status == http.StatusTooManyRequests:
		apiErr.Err = model.ErrRateLimited
	default:
		apiErr.Err = model.ErrUpstreamError
	}
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(status)
	}
	return apiErr
}

// Package handler provides the storefront's HTTP and MCP surface.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/mail"
	"storefront/internal/model"
)

// DefaultFeaturedCollection is the collection handle served by /featured.
const DefaultFeaturedCollection = "featured"

// Catalog reads products from the commerce gateway.
type Catalog interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error)
	ListProducts(ctx context.Context, limit int) ([]model.Product, error)
	GetCollection(ctx context.Context, handle string, limit int) (*model.Collection, error)
}

// RepairNotifier sends the emails for a new repair request.
type RepairNotifier interface {
	SendRepairEmails(ctx context.Context, req *model.RepairRequest, requestID string) mail.Delivery
}

// Options holds the handler's dependencies. Repairs, Cache and Metrics are
// optional.
type Options struct {
	Carts              *cart.Service
	Catalog            Catalog
	Repairs            RepairNotifier
	Cache              *cache.Cache
	Metrics            http.Handler
	FeaturedCollection string
	Logger             *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	carts    *cart.Service
	catalog  Catalog
	repairs  RepairNotifier
	cache    *cache.Cache
	metrics  http.Handler
	featured string
	logger   *slog.Logger
}

// New creates a Handler.
func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.FeaturedCollection == "" {
		opts.FeaturedCollection = DefaultFeaturedCollection
	}
	return &Handler{
		carts:    opts.Carts,
		catalog:  opts.Catalog,
		repairs:  opts.Repairs,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		featured: opts.FeaturedCollection,
		logger:   opts.Logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /cart", h.handleCartAction)
	mux.HandleFunc("GET /cart", h.handleGetCart)

	// Catalog reads go through the response cache when one is configured.
	mux.Handle("GET /search", h.cache.Middleware(http.HandlerFunc(h.handleSearch)))
	mux.Handle("GET /products", h.cache.Middleware(http.HandlerFunc(h.handleProducts)))
	mux.Handle("GET /featured", h.cache.Middleware(http.HandlerFunc(h.handleFeatured)))

	mux.HandleFunc("POST /repairs", h.handleCreateRepair)
	mux.HandleFunc("GET /repairs", h.handleRepairInfo)

	mux.Handle("/mcp", h.NewMCPHandler())

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, body := h.errorStatus(err)
	h.writeJSON(w, status, body)
}

// errorStatus maps err to a status code and response body. Errors without
// an APIError in their chain become a generic 500.
func (h *Handler) errorStatus(err error) (int, model.ErrorResponse) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		h.logger.Error("internal error", slog.String("error", err.Error()))
		apiErr = model.NewInternalError(err)
	}
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Warn("request failed",
			slog.String("code", apiErr.Code),
			slog.String("error", apiErr.Error()),
		)
	}
	return apiErr.StatusCode, model.ErrorResponse{
		Success: false,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Errors:  apiErr.Details,
	}
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

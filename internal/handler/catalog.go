package handler

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/model"
)

// Result limits per endpoint: default when absent, cap when larger.
const (
	searchDefaultLimit   = 10
	searchMaxLimit       = 50
	productsDefaultLimit = 50
	productsMaxLimit     = 100
	featuredDefaultLimit = 6
	featuredMaxLimit     = 20
)

// parseLimit reads ?limit=. Missing, malformed or non-positive values use
// def; larger values are capped at ceiling.
func parseLimit(r *http.Request, def, ceiling int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, ceiling)
}

// handleSearch runs a product search.
// GET /search?q=&limit=
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, &model.APIError{
			Code:       "VALIDATION_ERROR",
			Message:    "Search query is required",
			Details:    []model.ErrorDetail{{Field: "q", Message: "is required"}},
			StatusCode: http.StatusBadRequest,
			Err:        model.ErrInvalidRequest,
		})
		return
	}

	products, err := h.catalog.SearchProducts(r.Context(), query, parseLimit(r, searchDefaultLimit, searchMaxLimit))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	h.writeJSON(w, http.StatusOK, model.SearchResponse{
		Success:  true,
		Products: products,
		Query:    query,
	})
}

// handleProducts lists catalog products.
// GET /products?limit=
func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), parseLimit(r, productsDefaultLimit, productsMaxLimit))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	h.writeJSON(w, http.StatusOK, model.ProductsResponse{
		Success:  true,
		Products: products,
		Count:    len(products),
	})
}

// handleFeatured lists the featured collection.
// GET /featured?limit=
func (h *Handler) handleFeatured(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.GetCollection(r.Context(), h.featured, parseLimit(r, featuredDefaultLimit, featuredMaxLimit))
	if model.IsNotFound(err) {
		h.writeError(w, &model.APIError{
			Code:       "NOT_FOUND",
			Message:    "Featured collection not found",
			StatusCode: http.StatusNotFound,
			Err:        model.ErrNotFound,
		})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	products := c.Products
	if products == nil {
		products = []model.Product{}
	}
	h.writeJSON(w, http.StatusOK, model.FeaturedResponse{
		Success: true,
		Collection: model.CollectionSummary{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
		},
		Products: products,
		Count:    len(products),
	})
}

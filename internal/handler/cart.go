package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/model"
	"storefront/internal/validate"
)

// handleCartAction runs one cart action.
// POST /cart
func (h *Handler) handleCartAction(w http.ResponseWriter, r *http.Request) {
	var req model.CartActionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "cart operation requested",
		slog.String("action", req.Action),
		slog.String("cart_id", req.CartID),
		slog.Int("items", len(req.Items)),
	)

	res, err := h.runCartAction(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeCart(w, res)
}

// handleGetCart reads a cart for polling and restore.
// GET /cart?cartId=...
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cartID := r.URL.Query().Get("cartId")
	if cartID == "" {
		h.writeError(w, &model.APIError{
			Code:       "VALIDATION_ERROR",
			Message:    "Cart ID is required",
			Details:    []model.ErrorDetail{{Field: "cartId", Message: "is required"}},
			StatusCode: http.StatusBadRequest,
			Err:        model.ErrInvalidRequest,
		})
		return
	}

	res, err := h.carts.GetCart(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeCart(w, res)
}

// runCartAction dispatches a validated request to the cart service. Shared
// by the REST and MCP transports.
func (h *Handler) runCartAction(ctx context.Context, req *model.CartActionRequest) (*cart.Result, error) {
	switch req.Action {
	case model.ActionAdd:
		items := make([]model.LineInput, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, model.LineInput{VariantID: it.VariantID, Quantity: it.Quantity})
		}
		return h.carts.AddItems(ctx, items, req.CartID)

	case model.ActionUpdate, model.ActionRemove:
		if req.CartID == "" {
			return nil, model.NewValidationError("cartId", "is required")
		}
		if len(req.Items) == 0 {
			return nil, model.NewValidationError("items", "must contain at least 1 item(s)")
		}
		lines := make([]model.LineUpdate, 0, len(req.Items))
		for _, it := range req.Items {
			qty := it.Quantity
			if req.Action == model.ActionRemove {
				qty = 0
			}
			lines = append(lines, model.LineUpdate{LineID: it.TargetLineID(), Quantity: qty})
		}
		return h.carts.UpdateLines(ctx, req.CartID, lines)

	case model.ActionClear:
		var lineIDs []string
		for _, it := range req.Items {
			if id := it.TargetLineID(); id != "" {
				lineIDs = append(lineIDs, id)
			}
		}
		return h.carts.Clear(ctx, req.CartID, lineIDs)

	case model.ActionGet:
		return h.carts.GetCart(ctx, req.CartID)
	}
	return nil, model.NewValidationError("action", fmt.Sprintf("unsupported action %q", req.Action))
}

func (h *Handler) writeCart(w http.ResponseWriter, res *cart.Result) {
	if len(res.Degraded) > 0 {
		h.logger.Warn("cart returned with partial inventory",
			slog.String("cart_id", res.Cart.ID),
			slog.Int("degraded_lines", len(res.Degraded)),
		)
	}
	h.writeJSON(w, http.StatusOK, cartResponse(res))
}

func cartResponse(res *cart.Result) model.CartResponse {
	return model.CartResponse{
		Success:     true,
		Message:     res.Message,
		CartID:      res.Cart.ID,
		CheckoutURL: res.Cart.CheckoutURL,
		Cart:        res.Cart,
	}
}

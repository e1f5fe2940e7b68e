// Package cart runs cart operations against the commerce gateway.
//
// An add to an existing cart is an explicit pipeline:
//
//	partition → update call → add call → inventory refresh
//
// Each step returns a stepResult naming the cart it produced, so the order
// of gateway calls and the point of any failure show up in logs.
package cart

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"storefront/internal/gateway"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/reconcile"
	"storefront/internal/validate"
)

// Response messages.
const (
	MsgAdded     = "Items added to cart"
	MsgUpdated   = "Cart updated"
	MsgCleared   = "Cart cleared"
	MsgRetrieved = "Cart retrieved"
)

const defaultInventoryConcurrency = 8

// Options tunes a Service.
type Options struct {
	// PreserveUntouched restates untouched lines on every update batch.
	PreserveUntouched bool

	// InventoryConcurrency bounds concurrent per-line inventory reads.
	InventoryConcurrency int
}

// Result is the outcome of a successful cart operation.
type Result struct {
	Message string
	Cart    *model.Cart

	// Degraded lists lines whose inventory could not be refreshed.
	// Their QuantityAvailable is left nil.
	Degraded []Degradation
}

// Degradation records one swallowed inventory refresh failure.
type Degradation struct {
	VariantID string
	Err       error
}

// Service executes cart operations.
type Service struct {
	gw      gateway.Gateway
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Gateway
}

// NewService creates a cart service. logger and m may be nil.
func NewService(gw gateway.Gateway, opts Options, logger *slog.Logger, m *metrics.Gateway) *Service {
	if opts.InventoryConcurrency <= 0 {
		opts.InventoryConcurrency = defaultInventoryConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{gw: gw, opts: opts, logger: logger, metrics: m}
}

// AddRequest is the payload for AddItems.
type AddRequest struct {
	CartID string            `json:"cartId,omitempty"`
	Items  []model.LineInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateRequest is the payload for UpdateLines.
type UpdateRequest struct {
	CartID string             `json:"cartId" validate:"required"`
	Lines  []model.LineUpdate `json:"lines" validate:"required,min=1,dive"`
}

// stepResult is what one pipeline step hands to the next.
type stepResult struct {
	step   string
	cart   *model.Cart
	called bool // false when the step had nothing to send
}

// AddItems creates a cart holding items, or merges items into cartID.
func (s *Service) AddItems(ctx context.Context, items []model.LineInput, cartID string) (*Result, error) {
	if err := validate.Struct(AddRequest{CartID: cartID, Items: items}); err != nil {
		return nil, err
	}
	items = reconcile.Coalesce(items)

	if cartID == "" {
		s.logger.InfoContext(ctx, "creating cart", slog.Int("items", len(items)))
		cart, err := s.gw.CreateCart(ctx, items)
		if err != nil {
			return nil, err
		}
		return s.finish(ctx, MsgAdded, cart), nil
	}

	s.logger.InfoContext(ctx, "adding to existing cart",
		slog.String("cart_id", cartID),
		slog.Int("items", len(items)),
	)

	base, err := s.readStep(ctx, cartID)
	if err != nil {
		return nil, err
	}
	plan := s.partitionStep(ctx, base.cart, items)

	updated, err := s.updateStep(ctx, base, plan.Updates)
	if err != nil {
		return nil, err
	}
	added, err := s.addStep(ctx, updated, plan.Adds)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MsgAdded, added.cart), nil
}

// UpdateLines sets absolute quantities on existing lines.
func (s *Service) UpdateLines(ctx context.Context, cartID string, lines []model.LineUpdate) (*Result, error) {
	if err := validate.Struct(UpdateRequest{CartID: cartID, Lines: lines}); err != nil {
		return nil, err
	}
	cart, err := s.gw.UpdateLines(ctx, cartID, lines)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MsgUpdated, cart), nil
}

// Clear sets every line to zero in one update call. When lineIDs is empty
// the current lines are read from the gateway first.
func (s *Service) Clear(ctx context.Context, cartID string, lineIDs []string) (*Result, error) {
	if cartID == "" {
		return nil, model.NewValidationError("cartId", "is required")
	}

	var current []reconcile.CurrentLine
	if len(lineIDs) > 0 {
		for _, id := range lineIDs {
			current = append(current, reconcile.CurrentLine{LineID: id})
		}
	} else {
		base, err := s.readStep(ctx, cartID)
		if err != nil {
			return nil, err
		}
		if len(base.cart.Lines) == 0 {
			return &Result{Message: MsgCleared, Cart: base.cart}, nil
		}
		current = reconcile.FromCart(base.cart)
	}

	cart, err := s.gw.UpdateLines(ctx, cartID, reconcile.PlanClear(current))
	if err != nil {
		return nil, err
	}
	return &Result{Message: MsgCleared, Cart: cart}, nil
}

// GetCart reads the authoritative cart with refreshed inventory.
func (s *Service) GetCart(ctx context.Context, cartID string) (*Result, error) {
	if cartID == "" {
		return nil, model.NewValidationError("cartId", "is required")
	}
	cart, err := s.gw.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MsgRetrieved, cart), nil
}

// === Pipeline steps ===

func (s *Service) readStep(ctx context.Context, cartID string) (stepResult, error) {
	cart, err := s.gw.GetCart(ctx, cartID)
	if err != nil {
		return stepResult{}, err
	}
	s.logStep(ctx, stepResult{step: "read", cart: cart, called: true})
	return stepResult{step: "read", cart: cart, called: true}, nil
}

func (s *Service) partitionStep(ctx context.Context, cart *model.Cart, items []model.LineInput) *reconcile.Plan {
	plan := reconcile.PlanAdd(reconcile.FromCart(cart), items, reconcile.Options{
		PreserveUntouched: s.opts.PreserveUntouched,
	})
	s.logger.DebugContext(ctx, "cart step",
		slog.String("step", "partition"),
		slog.Int("updates", len(plan.Updates)),
		slog.Int("adds", len(plan.Adds)),
	)
	return plan
}

// updateStep sends the update batch against the cart from prev.
func (s *Service) updateStep(ctx context.Context, prev stepResult, updates []model.LineUpdate) (stepResult, error) {
	if len(updates) == 0 {
		return stepResult{step: "update", cart: prev.cart}, nil
	}
	cart, err := s.gw.UpdateLines(ctx, prev.cart.ID, updates)
	if err != nil {
		return stepResult{}, err
	}
	res := stepResult{step: "update", cart: cart, called: true}
	s.logStep(ctx, res)
	return res, nil
}

// addStep sends the add batch against the cart returned by the previous step.
func (s *Service) addStep(ctx context.Context, prev stepResult, adds []model.LineInput) (stepResult, error) {
	if len(adds) == 0 {
		return stepResult{step: "add", cart: prev.cart}, nil
	}
	cart, err := s.gw.AddLines(ctx, prev.cart.ID, adds)
	if err != nil {
		return stepResult{}, err
	}
	res := stepResult{step: "add", cart: cart, called: true}
	s.logStep(ctx, res)
	return res, nil
}

func (s *Service) logStep(ctx context.Context, r stepResult) {
	s.logger.DebugContext(ctx, "cart step",
		slog.String("step", r.step),
		slog.String("cart_id", r.cart.ID),
		slog.Int("lines", len(r.cart.Lines)),
	)
}

// finish refreshes inventory and wraps the result.
func (s *Service) finish(ctx context.Context, msg string, cart *model.Cart) *Result {
	degraded := s.refreshInventory(ctx, cart)
	return &Result{Message: msg, Cart: cart, Degraded: degraded}
}

// refreshInventory reads live stock for every line concurrently and merges
// it into cart. A failed read leaves that line's QuantityAvailable nil and
// is reported as a Degradation; it never fails the operation.
func (s *Service) refreshInventory(ctx context.Context, cart *model.Cart) []Degradation {
	if cart == nil || len(cart.Lines) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		degraded []Degradation
		g        errgroup.Group
	)
	g.SetLimit(s.opts.InventoryConcurrency)

	for i := range cart.Lines {
		line := &cart.Lines[i]
		g.Go(func() error {
			inv, err := s.gw.GetVariantInventory(ctx, line.VariantID)
			if err != nil {
				line.QuantityAvailable = nil
				s.metrics.Degraded("inventory_refresh")
				s.logger.WarnContext(ctx, "failed to fetch variant inventory",
					slog.String("variant_id", line.VariantID),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				degraded = append(degraded, Degradation{VariantID: line.VariantID, Err: err})
				mu.Unlock()
				return nil
			}
			line.QuantityAvailable = inv.QuantityAvailable
			line.AvailableForSale = inv.AvailableForSale
			return nil
		})
	}
	_ = g.Wait()

	return degraded
}

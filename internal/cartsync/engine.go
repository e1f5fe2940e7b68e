// Package cartsync keeps a local cart snapshot in step with the commerce
// gateway and persists it across restarts.
//
// The engine never updates its snapshot ahead of the gateway: every mutation
// is sent first and the snapshot is replaced with the cart the gateway
// returns. Concurrent mutations are not queued; the last response wins.
package cartsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"storefront/internal/model"
	"storefront/internal/reconcile"
	"storefront/internal/storage"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("cartsync: engine closed")

// Status is the engine's in-memory operation state. It is not persisted.
type Status struct {
	Loading bool
	Err     error
}

// Engine owns one cart snapshot.
type Engine struct {
	backend Backend
	store   storage.Store
	logger  *slog.Logger

	mu       sync.Mutex
	snap     Snapshot
	inFlight int
	lastErr  error

	fetching atomic.Bool
	closed   atomic.Bool
}

// New creates an engine. Call Restore before first use.
func New(backend Backend, store storage.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}
	return &Engine{backend: backend, store: store, logger: logger}
}

// Restore loads the persisted snapshot. A missing record leaves the engine
// empty. A corrupt record is deleted and treated as no cart. Only a store
// read failure is returned.
func (e *Engine) Restore(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	data, err := e.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restoring cart: %w", err)
	}

	snap, err := decodeRecord(data)
	if err != nil {
		e.logger.DebugContext(ctx, "discarding stored cart", slog.String("error", err.Error()))
		if derr := e.store.Delete(ctx); derr != nil {
			e.logger.WarnContext(ctx, "failed to delete corrupt cart record", slog.String("error", derr.Error()))
		}
		return nil
	}

	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()
	return nil
}

// Close marks the engine closed. Later operations return ErrClosed.
func (e *Engine) Close() {
	e.closed.Store(true)
}

// Snapshot returns a copy of the current snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.clone()
}

// Status reports whether an operation is in flight and the last error.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{Loading: e.inFlight > 0, Err: e.lastErr}
}

// QuantityInCart returns the quantity of variantID in the snapshot.
func (e *Engine) QuantityInCart(variantID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.QuantityOf(variantID)
}

// AddItems adds items to the current cart, creating one if none exists.
func (e *Engine) AddItems(ctx context.Context, items []model.LineInput) (Snapshot, error) {
	if e.closed.Load() {
		return Snapshot{}, ErrClosed
	}
	cartID := e.begin()

	c, err := e.backend.AddItems(ctx, items, cartID)
	return e.settle(ctx, "add", c, err)
}

// UpdateLineQuantity sets lineID to quantity. Zero removes the line.
func (e *Engine) UpdateLineQuantity(ctx context.Context, lineID string, quantity int) (Snapshot, error) {
	if e.closed.Load() {
		return Snapshot{}, ErrClosed
	}
	if quantity < 0 {
		return Snapshot{}, model.NewValidationError("quantity", "must not be negative")
	}

	e.mu.Lock()
	cartID := e.snap.CartID
	_, known := e.snap.Line(lineID)
	e.mu.Unlock()

	if cartID == "" {
		return Snapshot{}, model.NewNotFoundError("cart")
	}
	if !known {
		return Snapshot{}, model.NewNotFoundError("cart line")
	}

	e.begin()
	c, err := e.backend.UpdateLines(ctx, cartID, []model.LineUpdate{{LineID: lineID, Quantity: quantity}})
	return e.settle(ctx, "update", c, err)
}

// RemoveLine removes lineID from the cart.
func (e *Engine) RemoveLine(ctx context.Context, lineID string) (Snapshot, error) {
	return e.UpdateLineQuantity(ctx, lineID, 0)
}

// Clear zeroes every line in one gateway call and resets the snapshot.
//
// The snapshot is reset even when the gateway cannot be reached, and that
// transport error is still returned. A business or validation rejection
// leaves the snapshot untouched.
func (e *Engine) Clear(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.mu.Lock()
	cartID := e.snap.CartID
	lines := reconcile.FromCart(&model.Cart{Lines: e.snap.Items})
	e.mu.Unlock()

	var err error
	if cartID != "" && len(lines) > 0 {
		e.begin()
		_, err = e.backend.UpdateLines(ctx, cartID, reconcile.PlanClear(lines))
		e.end(err)
	}

	if model.IsBusiness(err) || model.IsValidation(err) {
		return err
	}
	if err != nil && !model.IsNotFound(err) {
		e.logger.WarnContext(ctx, "clearing cart locally after gateway failure",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()),
		)
	}

	e.replace(ctx, Snapshot{})
	if model.IsNotFound(err) {
		return nil
	}
	return err
}

// Fetch re-reads the cart from the gateway and replaces the snapshot. An
// empty cartID uses the snapshot's. It returns false without calling the
// gateway when another Fetch is in flight or there is no cart to read.
func (e *Engine) Fetch(ctx context.Context, cartID string) (bool, error) {
	if e.closed.Load() {
		return false, ErrClosed
	}
	if cartID == "" {
		e.mu.Lock()
		cartID = e.snap.CartID
		e.mu.Unlock()
	}
	if cartID == "" {
		return false, nil
	}
	if !e.fetching.CompareAndSwap(false, true) {
		return false, nil
	}
	defer e.fetching.Store(false)

	e.begin()
	c, err := e.backend.GetCart(ctx, cartID)
	_, err = e.settle(ctx, "fetch", c, err)
	return true, err
}

// begin marks an operation in flight and returns the current cart id.
func (e *Engine) begin() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight++
	return e.snap.CartID
}

func (e *Engine) end(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight--
	e.lastErr = err
}

// settle applies a gateway result. On success the returned cart becomes
// the snapshot. A missing cart resets the snapshot. Any other failure
// leaves it unchanged.
func (e *Engine) settle(ctx context.Context, op string, c *model.Cart, err error) (Snapshot, error) {
	e.end(err)

	if err != nil {
		e.logger.DebugContext(ctx, "cart operation failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		if model.IsNotFound(err) {
			e.replace(ctx, Snapshot{})
		}
		return e.Snapshot(), err
	}
	if c == nil {
		return e.Snapshot(), model.NewInternalError(fmt.Errorf("%s: backend returned no cart", op))
	}

	snap := fromCart(c)
	e.replace(ctx, snap)
	return snap.clone(), nil
}

// replace swaps the snapshot and persists it. Persistence failures are
// logged; the gateway already holds the confirmed state.
func (e *Engine) replace(ctx context.Context, snap Snapshot) {
	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()

	if err := e.persist(ctx, snap); err != nil {
		e.logger.WarnContext(ctx, "failed to persist cart", slog.String("error", err.Error()))
	}
}

func (e *Engine) persist(ctx context.Context, snap Snapshot) error {
	if snap.Empty() {
		return e.store.Delete(ctx)
	}
	data, err := encodeRecord(snap)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	return e.store.Save(ctx, data)
}

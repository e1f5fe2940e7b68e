package cartsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"storefront/internal/model"
	"storefront/internal/storage"
)

// fakeBackend is a Backend with function fields and call counters.
type fakeBackend struct {
	AddItemsFunc    func(ctx context.Context, items []model.LineInput, cartID string) (*model.Cart, error)
	UpdateLinesFunc func(ctx context.Context, cartID string, lines []model.LineUpdate) (*model.Cart, error)
	GetCartFunc     func(ctx context.Context, cartID string) (*model.Cart, error)

	addCalls, updateCalls, getCalls atomic.Int32
}

func (f *fakeBackend) AddItems(ctx context.Context, items []model.LineInput, cartID string) (*model.Cart, error) {
	f.addCalls.Add(1)
	return f.AddItemsFunc(ctx, items, cartID)
}

func (f *fakeBackend) UpdateLines(ctx context.Context, cartID string, lines []model.LineUpdate) (*model.Cart, error) {
	f.updateCalls.Add(1)
	return f.UpdateLinesFunc(ctx, cartID, lines)
}

func (f *fakeBackend) GetCart(ctx context.Context, cartID string) (*model.Cart, error) {
	f.getCalls.Add(1)
	return f.GetCartFunc(ctx, cartID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCart(id string, lines ...model.CartLine) *model.Cart {
	return &model.Cart{ID: id, CheckoutURL: "https://shop.example/checkout/" + id, Lines: lines}
}

func cartLine(id, variant string, qty int) model.CartLine {
	return model.CartLine{ID: id, VariantID: variant, Quantity: qty, AvailableForSale: true}
}

// seededEngine returns an engine whose snapshot holds c.
func seededEngine(t *testing.T, b Backend, store storage.Store, c *model.Cart) *Engine {
	t.Helper()
	e := New(b, store, testLogger())
	if c != nil {
		e.replace(context.Background(), fromCart(c))
	}
	return e
}

func TestEngine_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	b := &fakeBackend{
		AddItemsFunc: func(_ context.Context, items []model.LineInput, cartID string) (*model.Cart, error) {
			if cartID != "" {
				t.Errorf("first add cartID = %q, want empty", cartID)
			}
			return testCart("c1", cartLine("l1", "v1", items[0].Quantity)), nil
		},
		UpdateLinesFunc: func(_ context.Context, cartID string, lines []model.LineUpdate) (*model.Cart, error) {
			if lines[0].Quantity == 0 {
				return testCart(cartID), nil
			}
			return testCart(cartID, cartLine("l1", "v1", lines[0].Quantity)), nil
		},
	}
	e := New(b, store, testLogger())
	if err := e.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	snap, err := e.AddItems(ctx, []model.LineInput{{VariantID: "v1", Quantity: 2}})
	if err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}
	if snap.CartID != "c1" || len(snap.Items) != 1 || snap.Items[0].Quantity != 2 {
		t.Fatalf("after add snapshot = %+v", snap)
	}

	snap, err = e.UpdateLineQuantity(ctx, "l1", 5)
	if err != nil {
		t.Fatalf("UpdateLineQuantity() error = %v", err)
	}
	if snap.Items[0].Quantity != 5 {
		t.Errorf("quantity = %d, want 5", snap.Items[0].Quantity)
	}

	snap, err = e.RemoveLine(ctx, "l1")
	if err != nil {
		t.Fatalf("RemoveLine() error = %v", err)
	}
	if len(snap.Items) != 0 {
		t.Errorf("len(Items) = %d, want 0", len(snap.Items))
	}
	if snap.CartID != "c1" {
		t.Errorf("CartID = %q, want c1 kept until clear", snap.CartID)
	}

	data, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("store.Load() error = %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatal(err)
	}
	if rec["cartId"] != "c1" {
		t.Errorf("persisted cartId = %v, want c1", rec["cartId"])
	}
}

func TestEngine_SnapshotMirrorsGateway(t *testing.T) {
	// The gateway caps the quantity; the engine must not add locally.
	b := &fakeBackend{
		AddItemsFunc: func(_ context.Context, _ []model.LineInput, cartID string) (*model.Cart, error) {
			return testCart(cartID, cartLine("l1", "v1", 3)), nil
		},
	}
	e := seededEngine(t, b, nil, testCart("c1", cartLine("l1", "v1", 2)))

	snap, err := e.AddItems(context.Background(), []model.LineInput{{VariantID: "v1", Quantity: 5}})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Items[0].Quantity != 3 {
		t.Errorf("quantity = %d, want gateway's 3", snap.Items[0].Quantity)
	}
}

func TestEngine_UpdateLineQuantity_NotFound(t *testing.T) {
	b := &fakeBackend{}

	tests := []struct {
		name string
		seed *model.Cart
		line string
	}{
		{"no cart", nil, "l1"},
		{"unknown line", testCart("c1", cartLine("l1", "v1", 1)), "l9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := seededEngine(t, b, nil, tt.seed)
			_, err := e.UpdateLineQuantity(context.Background(), tt.line, 2)
			if !model.IsNotFound(err) {
				t.Errorf("error = %v, want not found", err)
			}
		})
	}
	if n := b.updateCalls.Load(); n != 0 {
		t.Errorf("gateway calls = %d, want 0", n)
	}
}

func TestEngine_UpdateLineQuantity_Idempotent(t *testing.T) {
	b := &fakeBackend{
		UpdateLinesFunc: func(_ context.Context, cartID string, lines []model.LineUpdate) (*model.Cart, error) {
			return testCart(cartID, cartLine("l1", "v1", lines[0].Quantity)), nil
		},
	}
	e := seededEngine(t, b, nil, testCart("c1", cartLine("l1", "v1", 1)))

	first, err := e.UpdateLineQuantity(context.Background(), "l1", 4)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.UpdateLineQuantity(context.Background(), "l1", 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("snapshots differ (-first +second):\n%s", diff)
	}
}

func TestEngine_FailureLeavesSnapshot(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"business", model.NewGatewayBusinessError([]model.UserError{{Message: "Not enough stock"}})},
		{"transport", model.NewUpstreamError("Shopify", errors.New("reset"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{
				UpdateLinesFunc: func(context.Context, string, []model.LineUpdate) (*model.Cart, error) {
					return nil, tt.err
				},
			}
			seed := testCart("c1", cartLine("l1", "v1", 1))
			e := seededEngine(t, b, nil, seed)
			before := e.Snapshot()

			_, err := e.UpdateLineQuantity(context.Background(), "l1", 9)
			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
			if diff := cmp.Diff(before, e.Snapshot()); diff != "" {
				t.Errorf("snapshot changed (-before +after):\n%s", diff)
			}
			if st := e.Status(); st.Loading || st.Err == nil {
				t.Errorf("Status() = %+v, want idle with error", st)
			}
		})
	}
}

func TestEngine_AddToVanishedCartResets(t *testing.T) {
	store := storage.NewMemoryStore()
	b := &fakeBackend{
		AddItemsFunc: func(context.Context, []model.LineInput, string) (*model.Cart, error) {
			return nil, model.NewNotFoundError("cart")
		},
	}
	e := seededEngine(t, b, store, testCart("gone", cartLine("l1", "v1", 1)))

	_, err := e.AddItems(context.Background(), []model.LineInput{{VariantID: "v2", Quantity: 1}})
	if !model.IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
	if !e.Snapshot().Empty() {
		t.Errorf("snapshot = %+v, want empty", e.Snapshot())
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("store still holds a record: %v", err)
	}
}

func TestEngine_Clear(t *testing.T) {
	var sent []model.LineUpdate
	store := storage.NewMemoryStore()
	b := &fakeBackend{
		UpdateLinesFunc: func(_ context.Context, cartID string, lines []model.LineUpdate) (*model.Cart, error) {
			sent = lines
			return testCart(cartID), nil
		},
	}
	e := seededEngine(t, b, store, testCart("c1",
		cartLine("l1", "A", 1), cartLine("l2", "B", 2), cartLine("l3", "C", 3)))

	if err := e.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if n := b.updateCalls.Load(); n != 1 {
		t.Errorf("update calls = %d, want 1", n)
	}
	want := []model.LineUpdate{{LineID: "l1"}, {LineID: "l2"}, {LineID: "l3"}}
	if diff := cmp.Diff(want, sent); diff != "" {
		t.Errorf("clear batch mismatch (-want +got):\n%s", diff)
	}
	if snap := e.Snapshot(); snap.CartID != "" || len(snap.Items) != 0 {
		t.Errorf("snapshot = %+v, want reset", snap)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("store.Load() error = %v, want ErrNotFound", err)
	}
}

func TestEngine_Clear_TransportFailureStillResets(t *testing.T) {
	b := &fakeBackend{
		UpdateLinesFunc: func(context.Context, string, []model.LineUpdate) (*model.Cart, error) {
			return nil, model.NewUpstreamError("Shopify", errors.New("timeout"))
		},
	}
	e := seededEngine(t, b, nil, testCart("c1", cartLine("l1", "A", 1)))

	err := e.Clear(context.Background())
	if !model.IsTransport(err) {
		t.Errorf("error = %v, want transport error surfaced", err)
	}
	if !e.Snapshot().Empty() {
		t.Errorf("snapshot = %+v, want reset", e.Snapshot())
	}
}

func TestEngine_Clear_BusinessFailureKeepsState(t *testing.T) {
	b := &fakeBackend{
		UpdateLinesFunc: func(context.Context, string, []model.LineUpdate) (*model.Cart, error) {
			return nil, model.NewGatewayBusinessError([]model.UserError{{Message: "cart is locked"}})
		},
	}
	e := seededEngine(t, b, nil, testCart("c1", cartLine("l1", "A", 1)))

	if err := e.Clear(context.Background()); !model.IsBusiness(err) {
		t.Fatalf("error = %v, want business error", err)
	}
	if snap := e.Snapshot(); snap.CartID != "c1" || len(snap.Items) != 1 {
		t.Errorf("snapshot = %+v, want unchanged", snap)
	}
}

func TestEngine_Clear_NoCart(t *testing.T) {
	b := &fakeBackend{}
	e := New(b, nil, testLogger())

	if err := e.Clear(context.Background()); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
	if n := b.updateCalls.Load(); n != 0 {
		t.Errorf("update calls = %d, want 0", n)
	}
}

func TestEngine_FetchCoalesces(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	b := &fakeBackend{
		GetCartFunc: func(_ context.Context, cartID string) (*model.Cart, error) {
			close(entered)
			<-release
			return testCart(cartID, cartLine("l1", "v1", 7)), nil
		},
	}
	e := seededEngine(t, b, nil, testCart("c1", cartLine("l1", "v1", 1)))

	var wg sync.WaitGroup
	var firstFetched bool
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstFetched, firstErr = e.Fetch(context.Background(), "")
	}()

	<-entered
	fetched, err := e.Fetch(context.Background(), "")
	if fetched || err != nil {
		t.Errorf("overlapping Fetch() = (%v, %v), want (false, nil)", fetched, err)
	}
	close(release)
	wg.Wait()

	if !firstFetched || firstErr != nil {
		t.Errorf("first Fetch() = (%v, %v), want (true, nil)", firstFetched, firstErr)
	}
	if n := b.getCalls.Load(); n != 1 {
		t.Errorf("gateway reads = %d, want 1", n)
	}
	if q := e.QuantityInCart("v1"); q != 7 {
		t.Errorf("QuantityInCart = %d, want 7", q)
	}

	// The flag is released once the first fetch completes.
	b.GetCartFunc = func(_ context.Context, cartID string) (*model.Cart, error) {
		return testCart(cartID), nil
	}
	if fetched, _ := e.Fetch(context.Background(), ""); !fetched {
		t.Error("Fetch() after completion was coalesced, want a new read")
	}
}

func TestEngine_FetchWithoutCart(t *testing.T) {
	b := &fakeBackend{}
	e := New(b, nil, testLogger())

	fetched, err := e.Fetch(context.Background(), "")
	if fetched || err != nil {
		t.Errorf("Fetch() = (%v, %v), want (false, nil)", fetched, err)
	}
}

func TestEngine_FetchMissingCartResets(t *testing.T) {
	b := &fakeBackend{
		GetCartFunc: func(context.Context, string) (*model.Cart, error) {
			return nil, model.NewNotFoundError("cart")
		},
	}
	e := seededEngine(t, b, nil, testCart("c1", cartLine("l1", "v1", 1)))

	if _, err := e.Fetch(context.Background(), ""); !model.IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
	if !e.Snapshot().Empty() {
		t.Error("snapshot should reset when the gateway no longer knows the cart")
	}
}

func TestEngine_Restore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		stored     string
		wantCartID string
		wantItems  int
		wantKept   bool
	}{
		{
			name:       "valid record",
			stored:     `{"cartId":"c1","checkoutUrl":"https://x","items":[{"lineId":"l1","variantId":"v1","title":"t","handle":"h","quantity":2,"price":{"amount":"1.00","currencyCode":"USD"},"availableForSale":true}]}`,
			wantCartID: "c1",
			wantItems:  1,
			wantKept:   true,
		},
		{
			name:     "empty cart record",
			stored:   `{"cartId":null,"checkoutUrl":null,"items":[]}`,
			wantKept: true,
		},
		{name: "not json", stored: `{{{`},
		{name: "items is not a list", stored: `{"cartId":"c1","items":"nope"}`},
		{name: "items without cart", stored: `{"cartId":null,"items":[{"lineId":"l1","variantId":"v1","quantity":1}]}`},
		{name: "line missing id", stored: `{"cartId":"c1","items":[{"variantId":"v1","quantity":1}]}`},
		{name: "bad currency", stored: `{"cartId":"c1","items":[{"lineId":"l1","variantId":"v1","quantity":1,"price":{"amount":"1","currencyCode":"???"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			if err := store.Save(ctx, []byte(tt.stored)); err != nil {
				t.Fatal(err)
			}
			e := New(&fakeBackend{}, store, testLogger())

			if err := e.Restore(ctx); err != nil {
				t.Fatalf("Restore() error = %v", err)
			}

			snap := e.Snapshot()
			if snap.CartID != tt.wantCartID || len(snap.Items) != tt.wantItems {
				t.Errorf("snapshot = %+v, want cart %q with %d items", snap, tt.wantCartID, tt.wantItems)
			}
			_, err := store.Load(ctx)
			if kept := err == nil; kept != tt.wantKept {
				t.Errorf("record kept = %v, want %v", kept, tt.wantKept)
			}
		})
	}
}

// failingStore fails every call.
type failingStore struct{ err error }

func (f failingStore) Load(context.Context) ([]byte, error) { return nil, f.err }
func (f failingStore) Save(context.Context, []byte) error   { return f.err }
func (f failingStore) Delete(context.Context) error         { return f.err }

func TestEngine_StoreFailures(t *testing.T) {
	boom := errors.New("disk full")
	b := &fakeBackend{
		AddItemsFunc: func(context.Context, []model.LineInput, string) (*model.Cart, error) {
			return testCart("c1", cartLine("l1", "v1", 1)), nil
		},
	}
	e := New(b, failingStore{err: boom}, testLogger())

	if err := e.Restore(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Restore() error = %v, want %v", err, boom)
	}

	// A confirmed mutation still succeeds when persisting fails.
	snap, err := e.AddItems(context.Background(), []model.LineInput{{VariantID: "v1", Quantity: 1}})
	if err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}
	if snap.CartID != "c1" {
		t.Errorf("CartID = %q, want c1", snap.CartID)
	}
}

func TestEngine_Closed(t *testing.T) {
	e := New(&fakeBackend{}, nil, testLogger())
	e.Close()

	if _, err := e.AddItems(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("AddItems() error = %v, want ErrClosed", err)
	}
	if err := e.Clear(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Clear() error = %v, want ErrClosed", err)
	}
	if _, err := e.Fetch(context.Background(), "c1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Fetch() error = %v, want ErrClosed", err)
	}
}

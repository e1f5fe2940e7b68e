package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/cartsync"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/model"
	"storefront/internal/storage"
)

// newServer runs the real HTTP surface over a mock gateway.
func newServer(t *testing.T, mock *gateway.Mock, c *cache.Cache) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.New(handler.Options{
		Carts:   cart.NewService(mock, cart.Options{PreserveUntouched: true}, logger, nil),
		Catalog: mock,
		Cache:   c,
		Logger:  logger,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, logger *slog.Logger) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: baseURL, Logger: logger})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func line(id, variant string, qty int) model.CartLine {
	return model.CartLine{ID: id, VariantID: variant, Quantity: qty, AvailableForSale: true}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "://nope"} {
		if _, err := New(Options{BaseURL: raw}); err == nil {
			t.Errorf("New(%q) succeeded, want error", raw)
		}
	}
}

func TestEngineOverHTTP(t *testing.T) {
	var lines []model.CartLine
	mock := &gateway.Mock{
		CreateCartFunc: func(_ context.Context, in []model.LineInput) (*model.Cart, error) {
			lines = []model.CartLine{line("l1", in[0].VariantID, in[0].Quantity)}
			return &model.Cart{ID: "c1", CheckoutURL: "https://shop/c1", Lines: lines}, nil
		},
		UpdateLinesFunc: func(_ context.Context, id string, u []model.LineUpdate) (*model.Cart, error) {
			var out []model.CartLine
			for _, l := range lines {
				for _, up := range u {
					if up.LineID == l.ID {
						l.Quantity = up.Quantity
					}
				}
				if l.Quantity > 0 {
					out = append(out, l)
				}
			}
			lines = out
			return &model.Cart{ID: id, CheckoutURL: "https://shop/c1", Lines: lines}, nil
		},
		GetCartFunc: func(_ context.Context, id string) (*model.Cart, error) {
			return &model.Cart{ID: id, CheckoutURL: "https://shop/c1", Lines: lines}, nil
		},
		GetVariantInventoryFunc: func(_ context.Context, v string) (*model.VariantInventory, error) {
			return &model.VariantInventory{VariantID: v, AvailableForSale: true, QuantityAvailable: model.IntPtr(4)}, nil
		},
	}
	srv := newServer(t, mock, nil)
	client := newClient(t, srv.URL, nil)

	store := storage.NewMemoryStore()
	engine := cartsync.New(client, store, nil)
	ctx := context.Background()
	if err := engine.Restore(ctx); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	snap, err := engine.AddItems(ctx, []model.LineInput{{VariantID: "v1", Quantity: 2}})
	if err != nil {
		t.Fatalf("AddItems() error: %v", err)
	}
	if snap.CartID != "c1" || snap.CheckoutURL != "https://shop/c1" {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Items) != 1 || snap.Items[0].QuantityAvailable == nil || *snap.Items[0].QuantityAvailable != 4 {
		t.Errorf("items = %+v, want one line with inventory 4", snap.Items)
	}

	snap, err = engine.UpdateLineQuantity(ctx, "l1", 3)
	if err != nil {
		t.Fatalf("UpdateLineQuantity() error: %v", err)
	}
	if snap.Items[0].Quantity != 3 {
		t.Errorf("quantity = %d, want 3", snap.Items[0].Quantity)
	}

	// A second engine over the same store sees the persisted cart.
	restored := cartsync.New(client, store, nil)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if diff := cmp.Diff(snap, restored.Snapshot()); diff != "" {
		t.Errorf("restored snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestGetCart(t *testing.T) {
	var gotID string
	mock := &gateway.Mock{
		GetCartFunc: func(_ context.Context, id string) (*model.Cart, error) {
			gotID = id
			return &model.Cart{ID: id, Lines: []model.CartLine{line("l1", "v1", 1)}}, nil
		},
	}
	client := newClient(t, newServer(t, mock, nil).URL, nil)

	c, err := client.GetCart(context.Background(), "gid://shopify/Cart/abc?key=1")
	if err != nil {
		t.Fatalf("GetCart() error: %v", err)
	}
	if gotID != "gid://shopify/Cart/abc?key=1" {
		t.Errorf("gateway saw cart id %q", gotID)
	}
	if c.ID != gotID || len(c.Lines) != 1 {
		t.Errorf("cart = %+v", c)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		gwErr     error
		check     func(error) bool
		wantCode  string
		wantMsg   string
		wantState int
	}{
		{
			name:      "not found",
			gwErr:     model.NewNotFoundError("cart"),
			check:     model.IsNotFound,
			wantCode:  "NOT_FOUND",
			wantMsg:   "cart not found",
			wantState: http.StatusNotFound,
		},
		{
			name:      "business rejection",
			gwErr:     model.NewGatewayBusinessError([]model.UserError{{Message: "Only 2 left in stock"}}),
			check:     model.IsBusiness,
			wantCode:  "GATEWAY_REJECTED",
			wantMsg:   "Only 2 left in stock",
			wantState: http.StatusUnprocessableEntity,
		},
		{
			name:      "upstream failure",
			gwErr:     model.NewUpstreamError("shopify", io.ErrUnexpectedEOF),
			check:     model.IsTransport,
			wantCode:  "UPSTREAM_ERROR",
			wantState: http.StatusBadGateway,
		},
		{
			name:      "rate limited",
			gwErr:     model.NewRateLimitError("shopify"),
			check:     model.IsTransport,
			wantCode:  "RATE_LIMITED",
			wantState: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &gateway.Mock{
				GetCartFunc: func(context.Context, string) (*model.Cart, error) { return nil, tt.gwErr },
			}
			client := newClient(t, newServer(t, mock, nil).URL, nil)

			_, err := client.GetCart(context.Background(), "c1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("error %v not classified as expected", err)
			}
			apiErr, ok := err.(*model.APIError)
			if !ok {
				t.Fatalf("error type = %T, want *model.APIError", err)
			}
			if apiErr.Code != tt.wantCode || apiErr.StatusCode != tt.wantState {
				t.Errorf("error = %+v", apiErr)
			}
			if tt.wantMsg != "" && apiErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationErrorKeepsDetails(t *testing.T) {
	client := newClient(t, newServer(t, &gateway.Mock{}, nil).URL, nil)

	_, err := client.AddItems(context.Background(), []model.LineInput{{VariantID: "v1", Quantity: 0}}, "")
	if !model.IsValidation(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	apiErr := err.(*model.APIError)
	if len(apiErr.Details) == 0 || !strings.HasPrefix(apiErr.Details[0].Field, "items") {
		t.Errorf("Details = %+v, want item field errors", apiErr.Details)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()
	client := newClient(t, srv.URL, nil)

	_, err := client.Search(context.Background(), "pikachu", 8)
	if !model.IsTransport(err) {
		t.Fatalf("error = %v, want transport error", err)
	}
	if !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := newClient(t, url, nil)
	_, err := client.GetCart(context.Background(), "c1")
	if !model.IsTransport(err) {
		t.Errorf("error = %v, want transport error", err)
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"cart":`))
	}))
	defer srv.Close()
	client := newClient(t, srv.URL, nil)

	if _, err := client.GetCart(context.Background(), "c1"); !model.IsTransport(err) {
		t.Errorf("error = %v, want decode error counted as transport", err)
	}
}

func TestSearchThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var calls atomic.Int32
	mock := &gateway.Mock{
		SearchProductsFunc: func(_ context.Context, q string, limit int) ([]model.Product, error) {
			calls.Add(1)
			return []model.Product{{ID: "p1", Title: "Pikachu V", Handle: "pikachu-v"}}, nil
		},
	}
	srv := newServer(t, mock, cache.New(rdb, cache.Options{TTL: time.Minute}))

	var logs bytes.Buffer
	client := newClient(t, srv.URL, slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	for i := 0; i < 2; i++ {
		products, err := client.Search(context.Background(), "pikachu", 8)
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(products) != 1 || products[0].Handle != "pikachu-v" {
			t.Errorf("products = %+v", products)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("gateway searches = %d, want 1", n)
	}

	var hits []bool
	dec := json.NewDecoder(&logs)
	for dec.More() {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatal(err)
		}
		if hit, ok := entry["cache_hit"].(bool); ok {
			hits = append(hits, hit)
		}
	}
	if diff := cmp.Diff([]bool{false, true}, hits); diff != "" {
		t.Errorf("cache_hit log values mismatch (-want +got):\n%s", diff)
	}
}

func TestListProductsAndFeatured(t *testing.T) {
	var gotLimit int
	mock := &gateway.Mock{
		ListProductsFunc: func(_ context.Context, limit int) ([]model.Product, error) {
			gotLimit = limit
			return []model.Product{{ID: "p1"}, {ID: "p2"}}, nil
		},
		GetCollectionFunc: func(_ context.Context, handle string, limit int) (*model.Collection, error) {
			return &model.Collection{ID: "col1", Title: "Featured", Products: []model.Product{{ID: "p3"}}}, nil
		},
	}
	client := newClient(t, newServer(t, mock, nil).URL, nil)
	ctx := context.Background()

	products, err := client.ListProducts(ctx, 20)
	if err != nil {
		t.Fatalf("ListProducts() error: %v", err)
	}
	if len(products) != 2 || gotLimit != 20 {
		t.Errorf("products = %d, limit = %d", len(products), gotLimit)
	}

	featured, err := client.Featured(ctx, 0)
	if err != nil {
		t.Fatalf("Featured() error: %v", err)
	}
	if featured.Collection.Title != "Featured" || featured.Count != 1 {
		t.Errorf("featured = %+v", featured)
	}
}

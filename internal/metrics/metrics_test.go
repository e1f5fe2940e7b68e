package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"storefront/internal/model"
)

func TestGatewayObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGateway(reg)

	m.Observe("cartCreate", 120*time.Millisecond, nil)
	m.Observe("cartCreate", 80*time.Millisecond, model.NewGatewayBusinessError(nil))
	m.Observe("cart", 10*time.Millisecond, model.NewUpstreamError("Shopify", errors.New("boom")))

	if got := testutil.ToFloat64(m.calls.WithLabelValues("cartCreate", "ok")); got != 1 {
		t.Errorf("ok calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("cartCreate", "business_error")); got != 1 {
		t.Errorf("business calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("cart", "transport_error")); got != 1 {
		t.Errorf("transport calls = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestGatewayDegraded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGateway(reg)

	m.Degraded("inventory_refresh")
	m.Degraded("inventory_refresh")

	if got := testutil.ToFloat64(m.degraded.WithLabelValues("inventory_refresh")); got != 2 {
		t.Errorf("degraded = %v, want 2", got)
	}
}

func TestNilSafe(t *testing.T) {
	var g *Gateway
	g.Observe("x", time.Second, nil)
	g.Degraded("x")

	var h *HTTP
	h.Observe("GET", "/cart", 200, time.Second)

	NewGateway(nil).Observe("x", time.Second, nil)
	NewHTTP(nil).Observe("GET", "/cart", 200, time.Second)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"business", model.NewGatewayBusinessError(nil), "business_error"},
		{"not found", model.NewNotFoundError("cart"), "not_found"},
		{"validation", model.NewValidationError("q", "required"), "invalid"},
		{"transport", model.NewUpstreamError("Shopify", nil), "transport_error"},
		{"rate limited", model.NewRateLimitError("Shopify"), "transport_error"},
		{"other", errors.New("x"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)
	h.Observe("GET", "GET /cart", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "storefront_http_requests_total") {
		t.Error("exposition missing storefront_http_requests_total")
	}
}

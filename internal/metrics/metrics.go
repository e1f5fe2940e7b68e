// Package metrics exposes Prometheus collectors for gateway calls and the
// local HTTP surface. All recorders are nil-safe so components can run
// without a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/model"
)

const namespace = "storefront"

// Gateway records remote commerce gateway calls.
type Gateway struct {
	duration *prometheus.HistogramVec
	calls    *prometheus.CounterVec
	degraded *prometheus.CounterVec
}

// NewGateway registers the gateway metrics on the provided registerer.
func NewGateway(reg prometheus.Registerer) *Gateway {
	if reg == nil {
		return &Gateway{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Duration of commerce gateway requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Commerce gateway requests by outcome.",
	}, []string{"operation", "outcome"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partial_degradations_total",
		Help:      "Best-effort sub-operations that failed without failing their parent.",
	}, []string{"kind"})
	reg.MustRegister(duration, calls, degraded)
	return &Gateway{duration: duration, calls: calls, degraded: degraded}
}

// Observe records one gateway call.
func (g *Gateway) Observe(operation string, elapsed time.Duration, err error) {
	if g == nil || g.calls == nil {
		return
	}
	op := normalizeLabel(operation)
	g.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	g.calls.WithLabelValues(op, Outcome(err)).Inc()
}

// Degraded counts a swallowed best-effort failure, e.g. one line's
// inventory refresh.
func (g *Gateway) Degraded(kind string) {
	if g == nil || g.degraded == nil {
		return
	}
	g.degraded.WithLabelValues(normalizeLabel(kind)).Inc()
}

// Outcome classifies an error into a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case model.IsBusiness(err):
		return "business_error"
	case model.IsNotFound(err):
		return "not_found"
	case model.IsValidation(err):
		return "invalid"
	case model.IsTransport(err):
		return "transport_error"
	default:
		return "error"
	}
}

// HTTP records requests served by the local surface.
type HTTP struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

// NewHTTP registers the HTTP metrics on the provided registerer.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	if reg == nil {
		return &HTTP{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by status code.",
	}, []string{"method", "route", "status"})
	reg.MustRegister(duration, requests)
	return &HTTP{duration: duration, requests: requests}
}

// Observe records one served request. route should be the mux pattern,
// not the raw path.
func (h *HTTP) Observe(method, route string, status int, elapsed time.Duration) {
	if h == nil || h.requests == nil {
		return
	}
	route = normalizeLabel(route)
	h.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	h.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	CheckoutCompleted         = "completed"
	CheckoutInsufficientStock = "insufficient_stock"
	CheckoutRejected          = "rejected"
	CheckoutFailed            = "failed"

	LoginSucceeded = "success"
	LoginFailed    = "failure"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CheckoutsTotal     *prometheus.CounterVec
	CheckoutDuration   prometheus.Histogram
	CheckoutItemsTotal prometheus.Counter

	AuthorizationDenialsTotal *prometheus.CounterVec
	LoginAttemptsTotal        *prometheus.CounterVec
	TokensRevokedTotal        prometheus.Counter
}

// NewMetrics creates and registers all metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CheckoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_checkouts_total",
				Help: "Checkout attempts by outcome",
			},
			[]string{"outcome"},
		),
		CheckoutDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "inventory_checkout_duration_seconds",
				Help:    "Time spent inside the checkout transaction",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		CheckoutItemsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_checkout_items_total",
				Help: "Units sold through completed checkouts",
			},
		),
		AuthorizationDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_authorization_denials_total",
				Help: "Requests rejected by the authorization gates",
			},
			[]string{"gate"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokensRevokedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_tokens_revoked_total",
				Help: "Tokens revoked through logout",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CheckoutsTotal,
		m.CheckoutDuration,
		m.CheckoutItemsTotal,
		m.AuthorizationDenialsTotal,
		m.LoginAttemptsTotal,
		m.TokensRevokedTotal,
	)

	return m
}

func (m *Metrics) RecordCheckout(outcome string, units int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(outcome).Inc()
	m.CheckoutDuration.Observe(elapsed.Seconds())
	if outcome == CheckoutCompleted && units > 0 {
		m.CheckoutItemsTotal.Add(float64(units))
	}
}

func (m *Metrics) RecordDenial(gate string) {
	if m == nil {
		return
	}
	m.AuthorizationDenialsTotal.WithLabelValues(gate).Inc()
}

func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRevocation() {
	if m == nil {
		return
	}
	m.TokensRevokedTotal.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests, labelling them by chi route pattern.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

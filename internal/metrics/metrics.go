// Package metrics содержит метрики Prometheus платформы.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы обработки событий провайдера.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeMiss      = "miss"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	BillingEventsTotal   *prometheus.CounterVec
	DecryptFallbacks     prometheus.Counter
	DailyVisitsProcessed prometheus.Counter
}

type Sweeper struct {
	Downgrades  prometheus.Counter
	Unresolved  prometheus.Counter
	Failed      prometheus.Counter
	LastRunUnix prometheus.Gauge
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "content_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "content_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BillingEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "content_billing_events_total",
			Help: "Billing events by source and outcome",
		}, []string{"source", "outcome"}),
		DecryptFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "content_blob_decrypt_fallbacks_total",
			Help: "Blobs served as stored bytes because decryption failed",
		}),
		DailyVisitsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "content_daily_visits_total",
			Help: "Unique daily visits counted",
		}),
	}
}

// NewSweeper регистрирует метрики прохода в reg.
func NewSweeper(reg prometheus.Registerer) *Sweeper {
	f := promauto.With(reg)
	return &Sweeper{
		Downgrades: f.NewCounter(prometheus.CounterOpts{
			Name: "content_sweeper_downgrades_total",
			Help: "Subscribers downgraded to the free plan",
		}),
		Unresolved: f.NewCounter(prometheus.CounterOpts{
			Name: "content_sweeper_unresolved_total",
			Help: "Expired subscribers left untouched because the free plan is missing",
		}),
		Failed: f.NewCounter(prometheus.CounterOpts{
			Name: "content_sweeper_failed_total",
			Help: "Expired subscribers whose downgrade failed",
		}),
		LastRunUnix: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_sweeper_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		}),
	}
}

// BillingEvent увеличивает счётчик событий провайдера.
func (m *Metrics) BillingEvent(source, outcome string) {
	if m == nil {
		return
	}
	m.BillingEventsTotal.WithLabelValues(source, outcome).Inc()
}

// HTTPMiddleware считает запросы и их длительность по шаблону маршрута chi.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

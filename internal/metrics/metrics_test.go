package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/content/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/content/a", "/content/b", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/content/{slug}", "403")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ok", "200")))
}

func TestBillingEvent(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.BillingEvent("webhook", OutcomeApplied)
	m.BillingEvent("webhook", OutcomeApplied)
	m.BillingEvent("redirect", OutcomeDuplicate)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.BillingEventsTotal.WithLabelValues("webhook", OutcomeApplied)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BillingEventsTotal.WithLabelValues("redirect", OutcomeDuplicate)))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.BillingEvent("webhook", OutcomeIgnored) })
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestNew_SweeperSeriesLiveInSweeperRegistry(t *testing.T) {
	platformReg := prometheus.NewRegistry()
	New(platformReg)
	sweeperReg := prometheus.NewRegistry()
	s := NewSweeper(sweeperReg)
	s.Downgrades.Inc()
	s.LastRunUnix.SetToCurrentTime()

	names := func(reg *prometheus.Registry) []string {
		families, err := reg.Gather()
		assert.NoError(t, err)
		var out []string
		for _, f := range families {
			out = append(out, f.GetName())
		}
		return out
	}

	assert.NotContains(t, names(platformReg), "content_sweeper_downgrades_total")
	assert.Contains(t, names(sweeperReg), "content_sweeper_downgrades_total")
	assert.Contains(t, names(sweeperReg), "content_sweeper_last_run_timestamp_seconds")
}

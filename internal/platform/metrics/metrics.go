package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-wide Prometheus metrics. Module-specific
// metrics live in their own internal/<module>/metrics packages.
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
}

// New creates and registers all application-wide Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conforma_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "status"}),

		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conforma_http_requests_total",
			Help: "Total HTTP requests by method and status class",
		}, []string{"method", "status"}),
	}
}

// ObserveHTTPRequest records one completed HTTP request. The status label is
// collapsed to its class (2xx, 4xx, ...) to keep cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method string, status int, d time.Duration) {
	if m != nil {
		class := strconv.Itoa(status/100) + "xx"
		m.HTTPRequestDuration.WithLabelValues(method, class).Observe(d.Seconds())
		m.HTTPRequestsTotal.WithLabelValues(method, class).Inc()
	}
}

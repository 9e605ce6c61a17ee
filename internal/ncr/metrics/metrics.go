package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the report module.
// Tracks lifecycle volumes and the approval path, the subsystem's hot spot.
type Metrics struct {
	ReportsCreated       prometheus.Counter
	ReportsEscalated     prometheus.Counter
	ReportsClosed        prometheus.Counter
	ApprovalsRecorded    prometheus.Counter
	ConcurrencyConflicts prometheus.Counter
	ApproveDuration      prometheus.Histogram
}

// New creates a new Metrics instance with all report module metrics registered.
func New() *Metrics {
	return &Metrics{
		ReportsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conforma_ncr_created_total",
			Help: "Total number of nonconformance reports created",
		}),
		ReportsEscalated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conforma_ncr_escalated_total",
			Help: "Total number of reports escalated to the review board",
		}),
		ReportsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conforma_ncr_closed_total",
			Help: "Total number of reports closed by disposition quorum",
		}),
		ApprovalsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conforma_disposition_approvals_total",
			Help: "Total number of disposition approvals recorded",
		}),
		ConcurrencyConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conforma_ncr_concurrency_conflicts_total",
			Help: "Total number of report mutations that exhausted their version-conflict retries",
		}),
		ApproveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "conforma_disposition_approve_duration_seconds",
			Help:    "Duration of approve operations including quorum closure",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveApprove records the duration of an approve operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApprove(start time.Time) {
	m.ApproveDuration.Observe(time.Since(start).Seconds())
}

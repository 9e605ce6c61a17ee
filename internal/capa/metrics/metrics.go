package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the corrective-action module.
type Metrics struct {
	Created     *prometheus.CounterVec
	Transitions prometheus.Counter
}

// New creates a new Metrics instance with all corrective-action metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conforma_capa_created_total",
			Help: "Total number of corrective actions created, by origin",
		}, []string{"origin"}),
		Transitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conforma_capa_transitions_total",
			Help: "Total number of successful corrective-action status transitions",
		}),
	}
}

// IncrementCreated records a created action. origin is "manual" or "generated".
func (m *Metrics) IncrementCreated(origin string) {
	m.Created.WithLabelValues(origin).Inc()
}

// IncrementTransition records a successful status transition.
func (m *Metrics) IncrementTransition() {
	m.Transitions.Inc()
}

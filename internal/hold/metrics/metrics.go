package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the hold module.
type Metrics struct {
	// Hold transitions by resulting status
	Transitions *prometheus.CounterVec

	// Rejected operations by operation and error code
	Rejections *prometheus.CounterVec

	OperationLatency *prometheus.HistogramVec
}

// New registers the hold metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenhold_hold_transitions_total",
			Help: "Hold state transitions by resulting status",
		}, []string{"status"}),

		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenhold_hold_rejections_total",
			Help: "Rejected hold operations by operation and error code",
		}, []string{"operation", "code"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tokenhold_hold_operation_duration_seconds",
			Help:    "Duration of hold operations including certificate checks and settlement",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementRejection(operation, code string) {
	if m != nil {
		m.Rejections.WithLabelValues(operation, code).Inc()
	}
}

func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-wide Prometheus collectors.
type Metrics struct {
	TransferVerdicts *prometheus.CounterVec
	TokensRegistered prometheus.Counter
	RequestLatency   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransferVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenhold_transfer_verdicts_total",
			Help: "Transfer gate verdicts by status code and whether the transfer was executed",
		}, []string{"status", "mode"}),
		TokensRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "tokenhold_tokens_registered_total",
			Help: "Total number of tokens registered with the setup registry",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tokenhold_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// IncrementVerdict records one gate evaluation. mode is "check" or "execute".
func (m *Metrics) IncrementVerdict(status, mode string) {
	if m != nil {
		m.TransferVerdicts.WithLabelValues(status, mode).Inc()
	}
}

func (m *Metrics) IncrementTokensRegistered() {
	if m != nil {
		m.TokensRegistered.Inc()
	}
}

func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m != nil {
		m.RequestLatency.WithLabelValues(route, method, status).Observe(seconds)
	}
}

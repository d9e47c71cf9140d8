package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncrementVerdict("0x51", "check")
	m.IncrementVerdict("0x51", "check")
	m.IncrementTokensRegistered()
	m.ObserveRequest("/v1/tokens/{token}/holds", "POST", "201", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransferVerdicts.WithLabelValues("0x51", "check")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensRegistered))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestLatency))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementVerdict("0x51", "check")
		m.IncrementTokensRegistered()
		m.ObserveRequest("/", "GET", "200", 0)
	})
}

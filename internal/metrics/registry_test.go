package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewWithRegisterer(prometheus.NewRegistry())
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordSafetyChecks_TalliesFailuresSeparately(t *testing.T) {
	r := newTestRegistry()
	r.RecordSafetyChecks(map[string]bool{"exit_liquidity": true, "direction_validity": false})

	assert.Equal(t, float64(1), counterValue(t, r.SafetyChecksTotal.WithLabelValues("exit_liquidity")))
	assert.Equal(t, float64(0), counterValue(t, r.SafetyChecksFailed.WithLabelValues("exit_liquidity")))
	assert.Equal(t, float64(1), counterValue(t, r.SafetyChecksFailed.WithLabelValues("direction_validity")))
}

func TestRecordSignalEmitted_IncrementsByStrategyType(t *testing.T) {
	r := newTestRegistry()
	r.RecordSignalEmitted("SP")
	r.RecordSignalEmitted("SP")
	r.RecordSignalEmitted("LG")

	assert.Equal(t, float64(2), counterValue(t, r.SignalsEmitted.WithLabelValues("SP")))
	assert.Equal(t, float64(1), counterValue(t, r.SignalsEmitted.WithLabelValues("LG")))
}

func TestRecordConvergenceOpenedAndClosed_TracksGauge(t *testing.T) {
	r := newTestRegistry()
	r.RecordConvergenceOpened()
	r.RecordConvergenceOpened()
	r.RecordConvergenceClosed("converged")

	var g dto.Metric
	require.NoError(t, r.ConvergenceActive.Write(&g))
	assert.Equal(t, float64(1), g.GetGauge().GetValue())
	assert.Equal(t, float64(1), counterValue(t, r.ConvergenceClosed.WithLabelValues("converged")))
}

func TestRecordJob_ErrorResultIncrementsJobErrors(t *testing.T) {
	r := newTestRegistry()
	r.RecordJob("price_monitor", "error", 50*time.Millisecond)
	r.RecordJob("price_monitor", "ok", 20*time.Millisecond)

	assert.Equal(t, float64(1), counterValue(t, r.JobErrors.WithLabelValues("price_monitor")))
}

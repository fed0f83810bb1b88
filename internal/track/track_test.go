package track

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/arbiq/scanner/internal/domain"
)

func TestSpreadAgeTracker_ClearsBelowThreshold(t *testing.T) {
	tr := NewSpreadAgeTracker()
	now := time.Now()
	min := decimal.NewFromFloat(0.5)

	age := tr.Observe("p1", decimal.NewFromFloat(0.8), min, now)
	assert.Equal(t, time.Duration(0), age)

	age = tr.Observe("p1", decimal.NewFromFloat(0.8), min, now.Add(time.Hour))
	assert.Equal(t, time.Hour, age)

	age = tr.Observe("p1", decimal.NewFromFloat(0.1), min, now.Add(2*time.Hour))
	assert.Equal(t, time.Duration(0), age)
	assert.Equal(t, float64(0), tr.AgeHours("p1", now.Add(2*time.Hour)))
}

func TestDepthHistoryCollector_Status(t *testing.T) {
	c := NewDepthHistoryCollector(0.75, 0.5, 3)

	for i := 0; i < 10; i++ {
		c.Record("p1", "binance", "bid", decimal.NewFromInt(10000))
	}

	assert.Equal(t, DepthOK, c.Status("p1", "binance", "bid", decimal.NewFromInt(9000)))
	assert.Equal(t, DepthWarning, c.Status("p1", "binance", "bid", decimal.NewFromInt(6000)))
	assert.Equal(t, DepthDanger, c.Status("p1", "binance", "bid", decimal.NewFromInt(3000)))
}

func TestDepthHistoryCollector_NotEnoughSamples(t *testing.T) {
	c := NewDepthHistoryCollector(0.75, 0.5, 10)
	c.Record("p1", "binance", "bid", decimal.NewFromInt(100))

	assert.Equal(t, DepthOK, c.Status("p1", "binance", "bid", decimal.NewFromInt(1)))
}

func TestEvaluateTiming_Fresh(t *testing.T) {
	low := domain.Timing{LatencyMs: 100}
	high := domain.Timing{LatencyMs: 150}

	td := EvaluateTiming(low, high)
	assert.Equal(t, int64(50), td.LatencyDiffMs)
	assert.Equal(t, int64(150), td.MaxLatencyMs)
	assert.True(t, td.Fresh(2000))
	assert.False(t, td.Fresh(100))
}

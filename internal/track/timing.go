package track

import "github.com/arbiq/scanner/internal/domain"

// TimingData is derived per candidate from both legs' order book fetch
// timings (§4.5).
type TimingData struct {
	LatencyDiffMs int64
	MaxLatencyMs  int64
}

// EvaluateTiming computes the timing data for a candidate from its two
// legs' domain.Timing brackets.
func EvaluateTiming(low, high domain.Timing) TimingData {
	diff := low.LatencyMs - high.LatencyMs
	if diff < 0 {
		diff = -diff
	}
	maxLatency := low.LatencyMs
	if high.LatencyMs > maxLatency {
		maxLatency = high.LatencyMs
	}
	return TimingData{LatencyDiffMs: diff, MaxLatencyMs: maxLatency}
}

// Fresh reports whether the timing data is within the configured latency
// bounds: both the max per-side latency and the cross-venue diff must be
// under maxLatencyMs (§4.5).
func (t TimingData) Fresh(maxLatencyMs int64) bool {
	return t.LatencyDiffMs < maxLatencyMs && t.MaxLatencyMs < maxLatencyMs
}

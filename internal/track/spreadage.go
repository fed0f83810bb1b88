// Package track implements the Trackers component (§4.5): the spread-age
// tracker, the depth-history collector, and timing-freshness evaluation.
package track

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SpreadAgeTTL bounds how long a pair's first-seen timestamp is retained
// once the spread has dropped back below threshold, matching the
// spread:first_seen:{pair_id} key's 48h TTL (§6).
const SpreadAgeTTL = 48 * time.Hour

// SpreadAgeTracker records, per pair_id, the timestamp at which the
// absolute spread was first observed continuously above a threshold.
// Crossing back below the threshold clears the timestamp.
type SpreadAgeTracker struct {
	mu        sync.Mutex
	firstSeen map[string]time.Time
}

// NewSpreadAgeTracker builds an empty tracker.
func NewSpreadAgeTracker() *SpreadAgeTracker {
	return &SpreadAgeTracker{firstSeen: make(map[string]time.Time)}
}

// Observe records one tick's spread reading for pairID at time now. It
// returns the age of the continuous above-threshold streak, or zero if
// the spread is currently below minThresholdPct.
func (t *SpreadAgeTracker) Observe(pairID string, spreadPct, minThresholdPct decimal.Decimal, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	above := spreadPct.Abs().GreaterThanOrEqual(minThresholdPct)
	if !above {
		delete(t.firstSeen, pairID)
		return 0
	}

	first, ok := t.firstSeen[pairID]
	if !ok {
		t.firstSeen[pairID] = now
		return 0
	}
	return now.Sub(first)
}

// AgeHours reports the current above-threshold streak length in hours for
// pairID, or zero if the pair is not currently tracked.
func (t *SpreadAgeTracker) AgeHours(pairID string, now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	first, ok := t.firstSeen[pairID]
	if !ok {
		return 0
	}
	return now.Sub(first).Hours()
}

// Sweep evicts entries older than SpreadAgeTTL, mirroring the Redis key's
// TTL-based expiry for the in-memory mirror an orchestrator job may hold
// between store round-trips.
func (t *SpreadAgeTracker) Sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for pairID, first := range t.firstSeen {
		if now.Sub(first) > SpreadAgeTTL {
			delete(t.firstSeen, pairID)
		}
	}
}

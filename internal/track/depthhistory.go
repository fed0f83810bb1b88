package track

import (
	"math"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// DepthHistorySize is the bounded ring length: 480 samples at a 3-minute
// collection interval covers 24 hours (§4.5), matching the
// depth_history:{pair_id}:{venue_id}:{side} key's 86400s TTL (§6).
const DepthHistorySize = 480

// DepthStatus classifies current depth against its historical mean.
type DepthStatus string

const (
	DepthOK      DepthStatus = "ok"
	DepthWarning DepthStatus = "warning"
	DepthDanger  DepthStatus = "danger"
)

// DepthStats summarizes one ring's samples.
type DepthStats struct {
	Count  int
	Mean   float64
	Min    float64
	Max    float64
	Median float64
	P10    float64
	P90    float64
	Stddev float64
}

// depthRing is a fixed-capacity circular buffer of USD depth samples.
type depthRing struct {
	samples []float64
	next    int
	full    bool
}

func newDepthRing() *depthRing {
	return &depthRing{samples: make([]float64, 0, DepthHistorySize)}
}

func (r *depthRing) add(v float64) {
	if len(r.samples) < DepthHistorySize {
		r.samples = append(r.samples, v)
		return
	}
	r.samples[r.next] = v
	r.next = (r.next + 1) % DepthHistorySize
	r.full = true
}

func (r *depthRing) stats() DepthStats {
	n := len(r.samples)
	if n == 0 {
		return DepthStats{}
	}
	sorted := append([]float64(nil), r.samples...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var sumSq float64
	for _, v := range sorted {
		d := v - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(n))

	return DepthStats{
		Count:  n,
		Mean:   mean,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Median: percentile(sorted, 50),
		P10:    percentile(sorted, 10),
		P90:    percentile(sorted, 90),
		Stddev: stddev,
	}
}

// percentile does linear-interpolation percentile lookup over an
// already-sorted slice.
func percentile(sorted []float64, pct float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := pct / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// depthKey identifies one (pair_id, venue_id, side) ring, mirroring the
// depth_history:{pair_id}:{venue_id}:{side} key shape (§6).
type depthKey struct {
	PairID  string
	VenueID string
	Side    string
}

// DepthHistoryCollector maintains one bounded ring per (pair_id, venue_id,
// side) and classifies current depth against each ring's historical mean.
type DepthHistoryCollector struct {
	mu            sync.Mutex
	rings         map[depthKey]*depthRing
	warningRatio  float64
	dangerRatio   float64
	minSamples    int
}

// NewDepthHistoryCollector builds a collector. warningRatio/dangerRatio
// are the warning_depth_ratio / min_depth_vs_history_ratio settings (§6);
// minSamples is min_history_samples — below that count, Status returns
// DepthOK unconditionally since there isn't enough history to judge by.
func NewDepthHistoryCollector(warningRatio, dangerRatio float64, minSamples int) *DepthHistoryCollector {
	return &DepthHistoryCollector{
		rings:        make(map[depthKey]*depthRing),
		warningRatio: warningRatio,
		dangerRatio:  dangerRatio,
		minSamples:   minSamples,
	}
}

// Record appends one USD depth sample for (pairID, venueID, side).
func (c *DepthHistoryCollector) Record(pairID, venueID, side string, depthUSD decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := depthKey{pairID, venueID, side}
	ring, ok := c.rings[key]
	if !ok {
		ring = newDepthRing()
		c.rings[key] = ring
	}
	v, _ := depthUSD.Float64()
	ring.add(v)
}

// Stats returns the historical distribution for (pairID, venueID, side).
func (c *DepthHistoryCollector) Stats(pairID, venueID, side string) DepthStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	ring, ok := c.rings[depthKey{pairID, venueID, side}]
	if !ok {
		return DepthStats{}
	}
	return ring.stats()
}

// DepthRatio returns current/mean, or 0 if there isn't enough history yet.
func (c *DepthHistoryCollector) DepthRatio(pairID, venueID, side string, current decimal.Decimal) (float64, bool) {
	stats := c.Stats(pairID, venueID, side)
	if stats.Count < c.minSamples || stats.Mean == 0 {
		return 0, false
	}
	cur, _ := current.Float64()
	return cur / stats.Mean, true
}

// Status classifies current depth against history (§4.5): DepthOK when
// there isn't enough history to judge, DepthDanger below dangerRatio,
// DepthWarning below warningRatio, DepthOK otherwise.
func (c *DepthHistoryCollector) Status(pairID, venueID, side string, current decimal.Decimal) DepthStatus {
	ratio, ok := c.DepthRatio(pairID, venueID, side, current)
	if !ok {
		return DepthOK
	}
	if ratio < c.dangerRatio {
		return DepthDanger
	}
	if ratio < c.warningRatio {
		return DepthWarning
	}
	return DepthOK
}

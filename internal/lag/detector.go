// Package lag implements the Lagging-Venue Detector (§4.7): given a cohort
// of venues quoting the same symbol, finds venues whose price has
// persistently deviated from the group median.
package lag

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
)

// Deviation is one venue's observed divergence from the cohort median.
type Deviation struct {
	VenueID      string
	DeviationPct decimal.Decimal
	Persisted    bool
}

// Detector tracks per-(symbol, venue) consecutive-tick deviation streaks
// to apply the hysteresis rule from §4.7: a venue is lagging only once its
// deviation has persisted across K consecutive ticks.
type Detector struct {
	mu        sync.Mutex
	streaks   map[string]map[string]int // symbol -> venue_id -> consecutive above-threshold ticks
	minVenues int
	minLagPct decimal.Decimal
	persistK  int
}

// NewDetector builds a detector. minVenues is the minimum cohort size (§4.7
// names it N); minLagPct and persistK are the deviation floor and
// consecutive-tick requirement (K).
func NewDetector(minVenues int, minLagPct decimal.Decimal, persistK int) *Detector {
	return &Detector{
		streaks:   make(map[string]map[string]int),
		minVenues: minVenues,
		minLagPct: minLagPct,
		persistK:  persistK,
	}
}

// Evaluate computes the cohort median mid-price across quotes (all for the
// same symbol) and returns every venue whose deviation currently persists
// the hysteresis window. Returns nil if the cohort is smaller than
// minVenues.
func (d *Detector) Evaluate(symbol string, quotes []domain.Quote) []Deviation {
	if len(quotes) < d.minVenues {
		return nil
	}

	median := medianMid(quotes)
	if median.Sign() == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	symbolStreaks, ok := d.streaks[symbol]
	if !ok {
		symbolStreaks = make(map[string]int)
		d.streaks[symbol] = symbolStreaks
	}

	var out []Deviation
	seen := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		seen[q.VenueID] = true
		deviation := q.MidPrice().Sub(median).Div(median).Abs().Mul(decimal.NewFromInt(100))

		if deviation.GreaterThanOrEqual(d.minLagPct) {
			symbolStreaks[q.VenueID]++
		} else {
			symbolStreaks[q.VenueID] = 0
		}

		if symbolStreaks[q.VenueID] >= d.persistK {
			out = append(out, Deviation{VenueID: q.VenueID, DeviationPct: deviation, Persisted: true})
		}
	}

	// A venue absent from this tick's cohort resets its streak so it
	// doesn't remain flagged after it stops reporting.
	for venueID := range symbolStreaks {
		if !seen[venueID] {
			delete(symbolStreaks, venueID)
		}
	}

	return out
}

func medianMid(quotes []domain.Quote) decimal.Decimal {
	mids := make([]decimal.Decimal, len(quotes))
	for i, q := range quotes {
		mids[i] = q.MidPrice()
	}
	sort.Slice(mids, func(i, j int) bool { return mids[i].LessThan(mids[j]) })

	n := len(mids)
	if n%2 == 1 {
		return mids[n/2]
	}
	return mids[n/2-1].Add(mids[n/2]).Div(decimal.NewFromInt(2))
}

package domain

import "fmt"

// ArbitragePair is an unordered venue pairing for one symbol. low_venue and
// high_venue are assigned at fetch time based on observed prices, not at
// enumeration time — the two sides are symmetric until quotes arrive.
type ArbitragePair struct {
	PairID    string   `json:"pair_id"`
	Symbol    string   `json:"symbol"`
	LowVenue  VenueRef `json:"low_venue"`
	HighVenue VenueRef `json:"high_venue"`
}

// NewPairID builds the stable pair_id used as the key in every per-pair map
// and every persistence key: symbol|low_venue_id|high_venue_id.
func NewPairID(symbol, lowVenueID, highVenueID string) string {
	return fmt.Sprintf("%s|%s|%s", symbol, lowVenueID, highVenueID)
}

// EnumeratePairs generates the arbitrage pairs for a ticker: every unordered
// combination of its venues where at least one side is shortable (§4.2).
func EnumeratePairs(t *Ticker) []ArbitragePair {
	venues := t.AllVenues()
	var pairs []ArbitragePair
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			a, b := venues[i], venues[j]
			if !a.Type.Shortable() && !b.Type.Shortable() {
				continue
			}
			pairs = append(pairs, ArbitragePair{
				PairID:    NewPairID(t.Symbol, a.VenueID, b.VenueID),
				Symbol:    t.Symbol,
				LowVenue:  a,
				HighVenue: b,
			})
		}
	}
	return pairs
}

// WithOrientation returns a copy of the pair with low/high assigned by which
// venue is currently cheaper, and the pair_id recomputed to match.
func (p ArbitragePair) WithOrientation(cheaperVenueID string) ArbitragePair {
	low, high := p.LowVenue, p.HighVenue
	if high.VenueID == cheaperVenueID {
		low, high = high, low
	}
	return ArbitragePair{
		PairID:    NewPairID(p.Symbol, low.VenueID, high.VenueID),
		Symbol:    p.Symbol,
		LowVenue:  low,
		HighVenue: high,
	}
}

// Package domain holds the core data model shared by every stage of the
// arbitrage pipeline: tickers, pairs, quotes, order books and signals.
package domain

import "time"

// VenueType distinguishes the trading mechanics a venue offers for a symbol.
type VenueType string

const (
	VenueCEXSpot    VenueType = "cex_spot"
	VenueCEXFutures VenueType = "cex_futures"
	VenueDEXSpot    VenueType = "dex_spot"
	VenuePerpDEX    VenueType = "perp_dex"
)

// Shortable reports whether positions opened on this venue type can be shorted.
func (t VenueType) Shortable() bool {
	return t == VenueCEXFutures || t == VenuePerpDEX
}

// VenueRef identifies one venue's listing of a symbol.
type VenueRef struct {
	VenueID string    `json:"venue_id"`
	Type    VenueType `json:"type"`
}

// Ticker is the canonical cross-venue record for one base symbol.
type Ticker struct {
	Symbol          string              `json:"symbol"`
	Contracts       map[string]string   `json:"contracts"` // chain -> address
	CEXFutures      []VenueRef          `json:"cex_futures"`
	CEXSpot         []VenueRef          `json:"cex_spot"`
	DEXSpot         []VenueRef          `json:"dex_spot"`
	PerpDEX         []VenueRef          `json:"perp_dex"`
	ArbitragePairs  []ArbitragePair     `json:"arbitrage_pairs"`
	IsValid         bool                `json:"is_valid"`
	ValidationErrors []string           `json:"validation_errors,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// IsShortable reports whether the ticker has at least one venue capable of
// opening a short position, per the data-model invariant in §3.
func (t *Ticker) IsShortable() bool {
	return len(t.CEXFutures) > 0 || len(t.PerpDEX) > 0
}

// AllVenues returns every venue reference across all four venue families.
func (t *Ticker) AllVenues() []VenueRef {
	out := make([]VenueRef, 0, len(t.CEXFutures)+len(t.CEXSpot)+len(t.DEXSpot)+len(t.PerpDEX))
	out = append(out, t.CEXFutures...)
	out = append(out, t.CEXSpot...)
	out = append(out, t.DEXSpot...)
	out = append(out, t.PerpDEX...)
	return out
}

package domain

import (
	"github.com/shopspring/decimal"
)

// Quote is a single venue's current best bid/ask (and, where applicable,
// mark price and 24h volume) for one symbol.
type Quote struct {
	VenueID      string           `json:"venue_id"`
	Symbol       string           `json:"symbol"`
	Bid          decimal.Decimal  `json:"bid"`
	Ask          decimal.Decimal  `json:"ask"`
	Mid          *decimal.Decimal `json:"mid,omitempty"`
	Mark         *decimal.Decimal `json:"mark,omitempty"`
	Volume24h    *decimal.Decimal `json:"volume_24h,omitempty"`
	ReceivedAtMs int64            `json:"received_at_ms"`
	LatencyMs    int64            `json:"latency_ms"`
}

// Fresh reports whether the quote is still within maxAgeMs of nowMs.
func (q Quote) Fresh(nowMs, maxAgeMs int64) bool {
	return nowMs-q.ReceivedAtMs <= maxAgeMs
}

// MidPrice returns the explicit mid if the venue reported one, otherwise the
// midpoint of bid/ask.
func (q Quote) MidPrice() decimal.Decimal {
	if q.Mid != nil {
		return *q.Mid
	}
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// BidAskSpreadPct is (ask-bid)/mid * 100, the quoted-spread check input for
// the bid_ask_spread safety check (§4.6).
func (q Quote) BidAskSpreadPct() decimal.Decimal {
	mid := q.MidPrice()
	if mid.IsZero() {
		return decimal.Zero
	}
	return q.Ask.Sub(q.Bid).Div(mid).Mul(decimal.NewFromInt(100))
}

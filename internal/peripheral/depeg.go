package peripheral

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/messaging"
	"github.com/arbiq/scanner/internal/safety"
	"github.com/arbiq/scanner/internal/track"
	"github.com/arbiq/scanner/internal/venue"
)

// DefaultDepegBps is the default deviation-from-1.0 threshold, in basis
// points of mid price, above which the monitor alerts.
const DefaultDepegBps = 50.0

// DepegMonitor watches a fixed stablecoin symbol set for mid-price
// deviation from 1.0, reusing the safety validator's bid_ask_spread and
// latency checks directly against its own thresholds (§4.12) rather than
// re-implementing quoted-spread or staleness logic.
type DepegMonitor struct {
	Venues     *venue.Registry
	Symbols    []string
	VenueIDs   []string
	DepegBps   float64
	Thresholds safety.Thresholds
	Notifier   messaging.Notifier
}

// Run fetches each configured symbol's quote from each configured venue
// and alerts when the mid deviates from 1.0 beyond DepegBps and the
// spread/latency checks confirm the quote isn't simply stale or wide.
func (m *DepegMonitor) Run(ctx context.Context, dryRun bool) error {
	bps := m.DepegBps
	if bps == 0 {
		bps = DefaultDepegBps
	}

	for _, symbol := range m.Symbols {
		for _, venueID := range m.VenueIDs {
			reg, ok := m.Venues.Get(venueID)
			if !ok || !reg.Capabilities.Has(venue.CapQuotes) {
				continue
			}
			quote, err := reg.Adapter.Ticker(ctx, symbol)
			if err != nil {
				return fmt.Errorf("peripheral: depeg ticker %s/%s: %w", venueID, symbol, err)
			}

			mid := quote.MidPrice()
			deviationBps, _ := mid.Sub(decimal.NewFromInt(1)).Abs().Mul(decimal.NewFromInt(10_000)).Float64()
			if deviationBps < bps {
				continue
			}

			timing := track.TimingData{
				MaxLatencyMs:  quote.LatencyMs,
				LatencyDiffMs: 0,
			}
			proto := safety.ProtoSignal{
				LowQuote:  quote,
				HighQuote: quote,
				NowMs:     time.Now().UnixMilli(),
				Timing:    timing,
			}
			spreadCheck := safety.CheckBidAskSpread(proto, m.Thresholds)
			latencyCheck := safety.CheckLatency(proto, m.Thresholds)
			if !spreadCheck.Passed || !latencyCheck.Passed {
				continue
			}
			if dryRun {
				continue
			}

			if err := m.alert(ctx, venueID, symbol, mid, deviationBps); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *DepegMonitor) alert(ctx context.Context, venueID, symbol string, mid decimal.Decimal, deviationBps float64) error {
	text := fmt.Sprintf("*%s* depeg alert — %s\nmid=%s deviation=%.1f bps", symbol, venueID, mid, deviationBps)
	_, err := m.Notifier.Send(ctx, messaging.Notification{Text: text})
	if err != nil {
		return fmt.Errorf("peripheral: send depeg alert: %w", err)
	}
	return nil
}

// Package peripheral implements the peripheral strategy engines (§4.12):
// thin consumers of the fetcher pool, KV store, and messaging channel that
// sit alongside the core arbitrage pipeline rather than inside it.
package peripheral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/messaging"
	"github.com/arbiq/scanner/internal/persistence"
	"github.com/arbiq/scanner/internal/tickerregistry"
	"github.com/arbiq/scanner/internal/venue"
)

// FundingThresholdBps is the default |funding_bps| above which the alerter
// fires, overridable via FundingAlerter.ThresholdBps.
const FundingThresholdBps = 10.0

// FundingAlerter polls funding_rate on every CapFunding-capable venue
// registered against a ticker's shortable legs, on a slower cadence than
// the core price monitor. Funding signals are outside the strategy_type
// taxonomy entirely and carry funding_bps instead of a spread (§4.12).
type FundingAlerter struct {
	Venues       *venue.Registry
	Tickers      *tickerregistry.Registry
	Repo         persistence.PeripheralRepo
	Notifier     messaging.Notifier
	ThresholdBps float64
}

// Run polls every shortable venue leg of every valid ticker for its
// current funding rate and alerts when |funding_bps| clears the threshold.
// dryRun evaluates candidates but neither alerts nor persists.
func (f *FundingAlerter) Run(ctx context.Context, dryRun bool) error {
	threshold := f.ThresholdBps
	if threshold == 0 {
		threshold = FundingThresholdBps
	}

	for _, t := range f.Tickers.Valid() {
		for _, ref := range shortableLegs(t) {
			reg, ok := f.Venues.Get(ref.VenueID)
			if !ok || !reg.Capabilities.Has(venue.CapFunding) {
				continue
			}
			rate, err := reg.Adapter.FundingRate(ctx, t.Symbol)
			if err != nil {
				if errors.Is(err, venue.ErrCapabilityUnsupported) {
					continue
				}
				return fmt.Errorf("peripheral: funding rate %s/%s: %w", ref.VenueID, t.Symbol, err)
			}

			bps, _ := rate.RatePct.Mul(decimal.NewFromInt(100)).Float64()
			if absFloat(bps) < threshold {
				continue
			}
			if dryRun {
				continue
			}

			notification := messaging.FormatFundingAlert(ref.VenueID, t.Symbol, bps)
			if _, err := f.Notifier.Send(ctx, notification); err != nil {
				return fmt.Errorf("peripheral: send funding alert: %w", err)
			}
			entry := persistence.FundingLogEntry{
				Ts:         time.Now(),
				VenueID:    ref.VenueID,
				Symbol:     t.Symbol,
				FundingBps: bps,
				Alerted:    true,
			}
			if err := f.Repo.InsertFunding(ctx, entry); err != nil {
				return fmt.Errorf("peripheral: insert funding log: %w", err)
			}
		}
	}
	return nil
}

// shortableLegs returns the venue legs capable of a funding rate at all —
// cex_futures and perp_dex are the only two venue types that carry one.
func shortableLegs(t *domain.Ticker) []domain.VenueRef {
	out := make([]domain.VenueRef, 0, len(t.CEXFutures)+len(t.PerpDEX))
	out = append(out, t.CEXFutures...)
	out = append(out, t.PerpDEX...)
	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

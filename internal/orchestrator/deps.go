package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/calc"
	"github.com/arbiq/scanner/internal/config"
	"github.com/arbiq/scanner/internal/convergence"
	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/fetch"
	"github.com/arbiq/scanner/internal/gate"
	"github.com/arbiq/scanner/internal/lag"
	"github.com/arbiq/scanner/internal/messaging"
	"github.com/arbiq/scanner/internal/metrics"
	"github.com/arbiq/scanner/internal/persistence"
	"github.com/arbiq/scanner/internal/safety"
	"github.com/arbiq/scanner/internal/signalbuilder"
	"github.com/arbiq/scanner/internal/store"
	"github.com/arbiq/scanner/internal/tickerregistry"
	"github.com/arbiq/scanner/internal/track"
	"github.com/arbiq/scanner/internal/venue"
)

// candidate is the orderbook_analysis job's output for one pair, consumed
// by the safety_alert job on its own, independent schedule. Holding it in
// memory between the two jobs (rather than round-tripping through Redis)
// keeps the hot path — tens-of-seconds orderbook analysis feeding
// seconds-cadence alert emission — a single process hop.
type candidate struct {
	pair             domain.ArbitragePair
	buyPrice         decimal.Decimal
	sellPrice        decimal.Decimal
	spread           domain.SpreadBreakdown
	exitLiquidityUSD decimal.Decimal
	buySlippagePct   decimal.Decimal
	sellSlippagePct  decimal.Decimal
	timing           track.TimingData
	lowQuote         domain.Quote
	highQuote        domain.Quote
}

// Deps bundles every pipeline component the five job types dispatch into.
// It is constructed once at process start-up (§9's appctx wiring point)
// and handed to New.
type Deps struct {
	Venues       *venue.Registry
	VenuesConfig *config.VenuesConfig
	Tickers      *tickerregistry.Registry
	Fetcher      *fetch.Pool
	Store        *store.Store
	Repo         persistence.Repository
	Gate         *gate.Gate
	Convergence  *convergence.Tracker
	Lag          *lag.Detector
	Notifier     messaging.Notifier
	Metrics      *metrics.Registry
	Settings     *config.Settings

	SpreadAge      *track.SpreadAgeTracker
	DepthHistory   *track.DepthHistoryCollector

	ChartURLFmt   string
	VenueLinkURLs map[string]string

	TargetPositionUSD decimal.Decimal // notional walked for executable-price fills
	MaxPriceAgeMs     int64

	mu         sync.Mutex
	byVenue    map[string]map[string]domain.Quote // last price_monitor tick, venue_id -> symbol -> quote
	candidates map[string]candidate                // pair_id -> last orderbook_analysis output
}

// thresholds builds a safety.Thresholds snapshot from the current Settings.
func (d *Deps) thresholds() safety.Thresholds {
	s := d.Settings
	return safety.Thresholds{
		MinExitLiquidityUSD:    decimal.NewFromInt(int64(s.MinExitLiquidityUSD)),
		MaxSlippagePct:         decimal.NewFromFloat(s.MaxSlippagePct),
		MaxPriceAgeMs:          d.MaxPriceAgeMs,
		MaxSpreadAgeHours:      float64(s.MaxSpreadAgeHours),
		MaxBidAskSpreadPct:     decimal.NewFromFloat(s.MaxBidAskSpreadPct),
		MaxLatencyMs:           int64(s.MaxLatencyMs),
		MinDepthVsHistoryRatio: s.MinDepthVsHistoryRatio,
		MinHistorySamples:      s.MinHistorySamples,
		MaxPositionToExitRatio: decimal.NewFromFloat(s.MaxPositionToExitRatio),
		HardPositionCapUSD:     decimal.NewFromInt(safety.HardPositionCap),
	}
}

// RunTickerDiscovery implements the daily ticker_discovery job (§4.2,
// §4.11): lists markets from every registered venue and rebuilds the
// ticker registry's symbol set.
func (d *Deps) RunTickerDiscovery(ctx context.Context, dryRun bool) error {
	var sources []tickerregistry.MarketsByVenue
	var firstErr error
	for _, reg := range d.Venues.All() {
		markets, err := reg.Adapter.Markets(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("discover %s: %w", reg.Adapter.Name(), err)
			}
			continue
		}
		venueCfg, _ := d.VenuesConfig.GetVenue(reg.Adapter.Name())
		symbols := make([]string, 0, len(markets))
		for _, m := range markets {
			symbols = append(symbols, m.Base)
		}
		sources = append(sources, tickerregistry.MarketsByVenue{
			VenueID: reg.Adapter.Name(),
			Type:    venueCfg.Type,
			Symbols: symbols,
		})
	}

	if dryRun {
		return firstErr
	}
	d.Tickers.Discover(sources)
	return firstErr
}

// RunPriceMonitor implements the seconds-cadence price_monitor job (§4.3,
// §4.11): fetches every valid ticker's pairs across venues and refreshes
// the prices:latest / spreads:latest snapshots.
func (d *Deps) RunPriceMonitor(ctx context.Context, dryRun bool) error {
	var pairs []domain.ArbitragePair
	for _, t := range d.Tickers.Valid() {
		pairs = append(pairs, t.ArbitragePairs...)
	}
	if len(pairs) == 0 {
		return nil
	}

	results := d.Fetcher.FetchTick(ctx, pairs)
	merged := fetch.MergeResults(results)

	d.mu.Lock()
	d.byVenue = merged
	d.mu.Unlock()

	if dryRun {
		return nil
	}

	flat := map[string]domain.Quote{}
	for venueID, bySymbol := range merged {
		for symbol, q := range bySymbol {
			flat[fetch.Key(venueID, symbol)] = q
		}
	}
	if err := d.Store.WritePricesLatest(ctx, flat); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	ranked := make([]store.RankedSpread, 0, len(pairs))
	for _, p := range pairs {
		low, high, ok := fetch.Completable(p, merged, now, d.MaxPriceAgeMs)
		if !ok {
			continue
		}
		pct := quoteSpreadPct(low, high)
		ranked = append(ranked, store.RankedSpread{PairID: p.PairID, Symbol: p.Symbol, SpreadPct: pct})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].SpreadPct > ranked[j].SpreadPct })
	return d.Store.WriteSpreadsLatest(ctx, ranked)
}

func quoteSpreadPct(low, high domain.Quote) float64 {
	if low.Ask.IsZero() {
		return 0
	}
	pct := high.Bid.Sub(low.Ask).Div(low.Ask).Mul(decimal.NewFromInt(100))
	f, _ := pct.Float64()
	return f
}

// RunOrderbookAnalysis implements the tens-of-seconds orderbook_analysis
// job (§4.4, §4.11): walks both legs' order books for every completable
// pair, computes the executable spread, and stages the result for the
// safety_alert job.
func (d *Deps) RunOrderbookAnalysis(ctx context.Context, dryRun bool) error {
	d.mu.Lock()
	byVenue := d.byVenue
	d.mu.Unlock()
	if byVenue == nil {
		return nil
	}

	now := time.Now().UnixMilli()
	staged := map[string]candidate{}
	var firstErr error

	for _, t := range d.Tickers.Valid() {
		for _, p := range t.ArbitragePairs {
			low, high, ok := fetch.Completable(p, byVenue, now, d.MaxPriceAgeMs)
			if !ok {
				continue
			}

			lowReg, ok := d.Venues.Get(p.LowVenue.VenueID)
			if !ok {
				continue
			}
			highReg, ok := d.Venues.Get(p.HighVenue.VenueID)
			if !ok {
				continue
			}

			lowBook, err := lowReg.Adapter.OrderBook(ctx, p.Symbol, 50)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			highBook, err := highReg.Adapter.OrderBook(ctx, p.Symbol, 50)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}

			buyFill := calc.ExecutablePrice(lowBook, domain.SideAsk, d.TargetPositionUSD, 1)
			sellFill := calc.ExecutablePrice(highBook, domain.SideBid, d.TargetPositionUSD, -1)
			spread := calc.Spread(low.Ask, high.Bid, buyFill.ExecutablePrice, sellFill.ExecutablePrice,
				decimal.Zero, decimal.Zero)
			exitUSD := calc.DepthWithinSlippage(highBook, domain.SideBid, decimal.NewFromFloat(d.Settings.MaxSlippagePct))
			timing := track.EvaluateTiming(lowBook.Timing, highBook.Timing)

			d.SpreadAge.Observe(p.PairID, spread.NetPct, decimal.NewFromFloat(d.Settings.MinSpreadPct), time.UnixMilli(now))

			if !dryRun {
				d.DepthHistory.Record(p.PairID, p.HighVenue.VenueID, string(domain.SideBid), exitUSD)
				exitF, _ := exitUSD.Float64()
				if err := d.Store.RecordDepthSample(ctx, p.PairID, p.HighVenue.VenueID, string(domain.SideBid), exitF, 200); err != nil && firstErr == nil {
					firstErr = err
				}
			}

			if !calc.Emittable(spread, decimal.NewFromFloat(d.Settings.MinSpreadPct), decimal.NewFromFloat(d.Settings.MaxSpreadPct)) {
				continue
			}

			staged[p.PairID] = candidate{
				pair: p, buyPrice: buyFill.ExecutablePrice, sellPrice: sellFill.ExecutablePrice,
				spread: spread, exitLiquidityUSD: exitUSD,
				buySlippagePct: buyFill.SlippagePct, sellSlippagePct: sellFill.SlippagePct,
				timing: timing, lowQuote: low, highQuote: high,
			}
		}
	}

	if dryRun {
		return firstErr
	}
	d.mu.Lock()
	d.candidates = staged
	d.mu.Unlock()
	return firstErr
}

// RunSafetyAlert implements the seconds-cadence safety_alert job (§4.6,
// §4.8, §4.9, §4.11): evaluates every staged candidate against the safety
// battery, and emits a notification for each one that passes and clears
// the cooldown/blacklist gate.
func (d *Deps) RunSafetyAlert(ctx context.Context, dryRun bool) error {
	d.mu.Lock()
	staged := d.candidates
	d.candidates = nil
	d.mu.Unlock()

	th := d.thresholds()
	now := time.Now()

	for _, c := range staged {
		depthRatio, hasHistory := d.DepthHistory.DepthRatio(c.pair.PairID, c.pair.HighVenue.VenueID,
			string(domain.SideBid), c.exitLiquidityUSD)

		proto := safety.ProtoSignal{
			PairID: c.pair.PairID, LowVenue: c.pair.LowVenue, HighVenue: c.pair.HighVenue,
			LowQuote: c.lowQuote, HighQuote: c.highQuote,
			BuySlippagePct: c.buySlippagePct, SellSlippagePct: c.sellSlippagePct,
			ExitLiquidityUSD: c.exitLiquidityUSD, NowMs: now.UnixMilli(),
			Timing: c.timing, CurrentDepthRatio: depthRatio, HasHistoryRatio: hasHistory,
		}
		proto.SpreadAgeHours = d.SpreadAge.AgeHours(c.pair.PairID, now)

		result := safety.Evaluate(proto, th)
		if d.Metrics != nil {
			checkMap := make(map[string]bool, len(result.Checks))
			for _, chk := range result.Checks {
				checkMap[chk.Name] = chk.Passed
			}
			d.Metrics.RecordSafetyChecks(checkMap)
		}
		if !result.Passed {
			if d.Metrics != nil {
				d.Metrics.RecordSignalSuppressed("safety_fail")
			}
			continue
		}

		sig := signalbuilder.Build(signalbuilder.Input{
			Pair: c.pair, BuyPrice: c.buyPrice, SellPrice: c.sellPrice, Spread: c.spread,
			ExitLiquidityUSD: c.exitLiquidityUSD, Timing: domain.Timing{LatencyMs: c.timing.MaxLatencyMs},
			ChartURLFmt: d.ChartURLFmt, VenueLinkURLs: d.VenueLinkURLs,
		}, result)

		if dryRun {
			continue
		}

		allowed, reason, err := d.Gate.ProcessAlert(ctx, gate.Candidate{
			Symbol: sig.Symbol, LowVenue: sig.LowVenue, HighVenue: sig.HighVenue,
		})
		if err != nil {
			return fmt.Errorf("safety_alert: gate for %s: %w", sig.Symbol, err)
		}
		if !allowed {
			if d.Metrics != nil {
				d.Metrics.RecordSignalSuppressed("cooldown_or_blacklist")
			}
			log.Debug().Str("symbol", sig.Symbol).Str("reason", reason).Msg("safety_alert: suppressed by gate")
			continue
		}

		if err := d.Repo.Signals.Insert(ctx, sig); err != nil {
			return fmt.Errorf("safety_alert: persist signal %s: %w", sig.ID, err)
		}
		if err := d.Convergence.Start(ctx, sig, now); err != nil {
			return fmt.Errorf("safety_alert: start convergence for %s: %w", sig.ID, err)
		}
		if d.Metrics != nil {
			d.Metrics.RecordSignalEmitted(sig.StrategyType)
			d.Metrics.RecordConvergenceOpened()
		}

		notif := messaging.FormatSignal(sig)
		msgID, err := d.Notifier.Send(ctx, notif)
		if err != nil {
			// Delivery failure is logged, not fatal: the signal is already
			// persisted and tracked, it just wasn't announced this tick.
			log.Warn().Err(err).Str("signal_id", sig.ID).Msg("safety_alert: notification send failed")
			continue
		}
		if msgID != nil {
			_ = d.Repo.Signals.MarkSent(ctx, sig.ID, *msgID, time.Now())
		}
	}
	return nil
}

// RunConvergence implements the minutes-cadence convergence job (§4.10,
// §4.11): re-ticks every open convergence record.
func (d *Deps) RunConvergence(ctx context.Context, dryRun bool) error {
	if dryRun {
		return nil
	}
	var firstErr error
	d.Convergence.TickAll(ctx, time.Now(), func(signalID string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("convergence tick for %s: %w", signalID, err)
		}
	})
	return firstErr
}

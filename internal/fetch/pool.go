// Package fetch implements the Price & Order-Book Fetcher (§4.3): for every
// tick, it groups pending pairs by venue and dispatches one batch per
// venue, concurrent across venues but sequential within a venue, honoring
// each venue's token-bucket rate limit.
package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/net/ratelimit"
	"github.com/arbiq/scanner/internal/venue"
)

// Result is one venue's fetch outcome for this tick.
type Result struct {
	VenueID string
	Quotes  map[string]domain.Quote // keyed by base symbol
	Err     error
}

// Pool fetches quotes across venues for one tick, bounded by
// MaxParallelVenues.
type Pool struct {
	registry          *venue.Registry
	limiter           *ratelimit.Manager
	maxParallelVenues int
}

// New builds a fetch Pool. maxParallelVenues is §5's max_parallel_venues
// (default 16).
func New(registry *venue.Registry, limiter *ratelimit.Manager, maxParallelVenues int) *Pool {
	if maxParallelVenues <= 0 {
		maxParallelVenues = 16
	}
	return &Pool{registry: registry, limiter: limiter, maxParallelVenues: maxParallelVenues}
}

// pendingByVenue groups requested symbols per venue_id.
func pendingByVenue(pairs []domain.ArbitragePair) map[string]map[string]struct{} {
	byVenue := make(map[string]map[string]struct{})
	addSymbol := func(venueID, symbol string) {
		if byVenue[venueID] == nil {
			byVenue[venueID] = make(map[string]struct{})
		}
		byVenue[venueID][symbol] = struct{}{}
	}
	for _, p := range pairs {
		addSymbol(p.LowVenue.VenueID, p.Symbol)
		addSymbol(p.HighVenue.VenueID, p.Symbol)
	}
	return byVenue
}

// FetchTick runs one tick: one concurrent goroutine per venue, bounded by
// maxParallelVenues, each dispatching its symbols sequentially against its
// own adapter and rate limiter.
func (p *Pool) FetchTick(ctx context.Context, pairs []domain.ArbitragePair) []Result {
	byVenue := pendingByVenue(pairs)

	sem := make(chan struct{}, p.maxParallelVenues)
	var wg sync.WaitGroup
	results := make([]Result, len(byVenue))
	i := 0
	for venueID, symbolSet := range byVenue {
		idx := i
		i++
		venueID := venueID
		symbols := make([]string, 0, len(symbolSet))
		for s := range symbolSet {
			symbols = append(symbols, s)
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = p.fetchVenue(ctx, venueID, symbols)
		}()
	}
	wg.Wait()
	return results
}

func (p *Pool) fetchVenue(ctx context.Context, venueID string, symbols []string) Result {
	reg, ok := p.registry.Get(venueID)
	if !ok {
		return Result{VenueID: venueID, Err: fmt.Errorf("fetch: venue %s not registered", venueID)}
	}
	if !reg.Capabilities.Has(venue.CapQuotes) {
		return Result{VenueID: venueID, Err: fmt.Errorf("fetch: venue %s lacks quotes capability", venueID)}
	}

	if err := p.limiter.Wait(ctx, venueID, venueID); err != nil {
		return Result{VenueID: venueID, Err: fmt.Errorf("fetch: rate limit wait for %s: %w", venueID, err)}
	}

	quotes, err := reg.Adapter.Tickers(ctx, symbols)
	if err == nil {
		out := make(map[string]domain.Quote, len(quotes))
		for _, q := range quotes {
			out[q.Symbol] = q
		}
		return Result{VenueID: venueID, Quotes: out}
	}

	// Batch endpoint unsupported or failed: fall back to sequential
	// per-symbol ticker calls within this venue, still paced by the same
	// limiter (one concurrent in-flight per venue per §5).
	out := make(map[string]domain.Quote, len(symbols))
	var firstErr error
	for _, symbol := range symbols {
		if waitErr := p.limiter.Wait(ctx, venueID, venueID); waitErr != nil {
			if firstErr == nil {
				firstErr = waitErr
			}
			continue
		}
		q, qErr := reg.Adapter.Ticker(ctx, symbol)
		if qErr != nil {
			if firstErr == nil {
				firstErr = qErr
			}
			continue
		}
		out[symbol] = q
	}
	return Result{VenueID: venueID, Quotes: out, Err: firstErr}
}

// Completable reports whether both sides of pair have a fresh quote as of
// nowMs, per the §4.3 "completable" rule: skip, don't fail, on partial
// fetch failure.
func Completable(pair domain.ArbitragePair, byVenue map[string]map[string]domain.Quote, nowMs, maxAgeMs int64) (low, high domain.Quote, ok bool) {
	lowVenue, lowOK := byVenue[pair.LowVenue.VenueID]
	highVenue, highOK := byVenue[pair.HighVenue.VenueID]
	if !lowOK || !highOK {
		return domain.Quote{}, domain.Quote{}, false
	}
	low, lowOK = lowVenue[pair.Symbol]
	high, highOK = highVenue[pair.Symbol]
	if !lowOK || !highOK {
		return domain.Quote{}, domain.Quote{}, false
	}
	if !low.Fresh(nowMs, maxAgeMs) || !high.Fresh(nowMs, maxAgeMs) {
		return domain.Quote{}, domain.Quote{}, false
	}
	return low, high, true
}

// MergeResults collects per-venue fetch results into a nested map keyed by
// venue_id, then base symbol; Key builds the flat "venue_id:base_symbol"
// form of the same pair of keys.
func MergeResults(results []Result) map[string]map[string]domain.Quote {
	out := make(map[string]map[string]domain.Quote, len(results))
	for _, r := range results {
		if r.Quotes == nil {
			continue
		}
		out[r.VenueID] = r.Quotes
	}
	return out
}

// Key formats a venue_id:base_symbol composite key in the exact form §4.3
// names (e.g. "binance_futures:BTC").
func Key(venueID, symbol string) string {
	return fmt.Sprintf("%s:%s", venueID, symbol)
}

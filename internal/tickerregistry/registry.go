// Package tickerregistry implements the Ticker Registry (§4.2): the
// canonical, read-mostly symbol set the rest of the pipeline enumerates
// arbitrage pairs from. Discovery rewrites one symbol's entry atomically;
// every other symbol's entry is untouched.
package tickerregistry

import (
	"sync"
	"time"

	"github.com/arbiq/scanner/internal/domain"
)

// Registry holds the canonical domain.Ticker set, keyed by symbol.
type Registry struct {
	mu      sync.RWMutex
	tickers map[string]*domain.Ticker
}

// New creates an empty ticker registry.
func New() *Registry {
	return &Registry{tickers: make(map[string]*domain.Ticker)}
}

// Upsert atomically replaces symbol's ticker entry, re-running arbitrage
// pair enumeration and the shortable-venue validation (§3) before the swap
// so no reader ever observes a ticker with stale ArbitragePairs.
func (r *Registry) Upsert(t *domain.Ticker) {
	t.ArbitragePairs = domain.EnumeratePairs(t)
	t.IsValid, t.ValidationErrors = validate(t)
	t.UpdatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickers[t.Symbol] = t
}

// Get returns symbol's ticker, if registered.
func (r *Registry) Get(symbol string) (*domain.Ticker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickers[symbol]
	return t, ok
}

// All returns every registered ticker. The slice is a snapshot; callers
// must not mutate the returned *domain.Ticker values.
func (r *Registry) All() []*domain.Ticker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Ticker, 0, len(r.tickers))
	for _, t := range r.tickers {
		out = append(out, t)
	}
	return out
}

// Valid returns every registered ticker that passed validation, the set
// the fetcher pool and pair enumeration should actually act on.
func (r *Registry) Valid() []*domain.Ticker {
	all := r.All()
	out := make([]*domain.Ticker, 0, len(all))
	for _, t := range all {
		if t.IsValid {
			out = append(out, t)
		}
	}
	return out
}

// validate enforces the data-model invariant from §3: a ticker needs at
// least one shortable venue (cex_futures or perp_dex) to ever host an
// alertable pair, and at least two venues total to have a pair at all.
func validate(t *domain.Ticker) (bool, []string) {
	var errs []string
	if len(t.AllVenues()) < 2 {
		errs = append(errs, "fewer than two venues listed")
	}
	if !t.IsShortable() {
		errs = append(errs, "no shortable venue (cex_futures or perp_dex)")
	}
	return len(errs) == 0, errs
}

// MarketsByVenue is one venue's discovered market list, as returned by
// venue.Adapter.Markets.
type MarketsByVenue struct {
	VenueID string
	Type    domain.VenueType
	Symbols []string
}

// Discover folds a fresh markets listing for every venue into symbol-keyed
// domain.Ticker entries and upserts each one. It is the daily ticker
// discovery job's core logic (§4.11), separated from the venue I/O so it
// can be tested without a live adapter.
func (r *Registry) Discover(sources []MarketsByVenue) {
	bySymbol := make(map[string]*domain.Ticker)
	for _, src := range sources {
		for _, symbol := range src.Symbols {
			t, ok := bySymbol[symbol]
			if !ok {
				t = &domain.Ticker{Symbol: symbol, Contracts: map[string]string{}}
				bySymbol[symbol] = t
			}
			ref := domain.VenueRef{VenueID: src.VenueID, Type: src.Type}
			switch src.Type {
			case domain.VenueCEXSpot:
				t.CEXSpot = append(t.CEXSpot, ref)
			case domain.VenueCEXFutures:
				t.CEXFutures = append(t.CEXFutures, ref)
			case domain.VenueDEXSpot:
				t.DEXSpot = append(t.DEXSpot, ref)
			case domain.VenuePerpDEX:
				t.PerpDEX = append(t.PerpDEX, ref)
			}
		}
	}
	for _, t := range bySymbol {
		r.Upsert(t)
	}
}

package appctx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/cache"
	"github.com/arbiq/scanner/internal/convergence"
	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/venue"
)

// orderBookDepth is how many levels the convergence tick requests per side
// — enough to price a realistic exit without the full book.
const orderBookDepth = 25

// legCacheTTL bounds how long a fetched leg may be reused across
// Snapshot calls within the same convergence tick — long enough to dedupe
// the common case of two tracked pairs sharing a leg, short enough that
// convergence evaluation never trades on genuinely stale data.
const legCacheTTL = 2 * time.Second

// legSnapshotCacheSize bounds the memoization cache below; a pair count
// in the low thousands fits comfortably without unbounded growth.
const legSnapshotCacheSize = 4096

// LiveQuoteSource implements convergence.QuoteSource by re-fetching both
// legs of a tracked pair from their live venue adapters, rather than the
// cached prices:latest snapshot the core pipeline writes — a convergence
// tick intentionally re-observes the world instead of trusting a fetch
// that may be up to one price-monitor interval stale. legCache, grounded
// on the teacher's internal/data/cache.TTLCache, memoizes a fetched leg
// briefly so two pairs sharing a leg in the same tick only fetch it once.
type LiveQuoteSource struct {
	Venues *venue.Registry

	legCache *cache.TTLCache
}

// NewLiveQuoteSource builds a LiveQuoteSource with its leg memoization
// cache ready to use.
func NewLiveQuoteSource(venues *venue.Registry) *LiveQuoteSource {
	return &LiveQuoteSource{Venues: venues, legCache: cache.New(legSnapshotCacheSize, 30*time.Second)}
}

type legResult struct {
	quote domain.Quote
	depth decimal.Decimal
}

// Snapshot fetches pairID's symbol (its first "|"-delimited segment, per
// domain.NewPairID) on both lowVenue and highVenue and sums each side's
// resting order-book notional as its depth figure.
func (s *LiveQuoteSource) Snapshot(ctx context.Context, pairID, lowVenue, highVenue string) (convergence.Snapshot, error) {
	symbol := pairSymbol(pairID)

	lowQuote, lowDepth, err := s.legSnapshot(ctx, lowVenue, symbol, domain.SideBid)
	if err != nil {
		return convergence.Snapshot{}, fmt.Errorf("appctx: quote source low leg %s/%s: %w", lowVenue, symbol, err)
	}
	highQuote, highDepth, err := s.legSnapshot(ctx, highVenue, symbol, domain.SideAsk)
	if err != nil {
		return convergence.Snapshot{}, fmt.Errorf("appctx: quote source high leg %s/%s: %w", highVenue, symbol, err)
	}

	return convergence.Snapshot{
		LowBid: lowQuote.Bid, LowAsk: lowQuote.Ask,
		HighBid: highQuote.Bid, HighAsk: highQuote.Ask,
		LowDepthUSD: lowDepth, HighDepthUSD: highDepth,
	}, nil
}

func (s *LiveQuoteSource) legSnapshot(ctx context.Context, venueID, symbol string, depthSide domain.Side) (domain.Quote, decimal.Decimal, error) {
	cacheKey := venueID + "/" + symbol + "/" + string(depthSide)
	if s.legCache != nil {
		if cached, ok := s.legCache.Get(cacheKey); ok {
			r := cached.(legResult)
			return r.quote, r.depth, nil
		}
	}

	quote, depth, err := s.fetchLeg(ctx, venueID, symbol, depthSide)
	if err != nil {
		return domain.Quote{}, decimal.Zero, err
	}
	if s.legCache != nil {
		s.legCache.Set(cacheKey, legResult{quote: quote, depth: depth}, legCacheTTL)
	}
	return quote, depth, nil
}

func (s *LiveQuoteSource) fetchLeg(ctx context.Context, venueID, symbol string, depthSide domain.Side) (domain.Quote, decimal.Decimal, error) {
	reg, ok := s.Venues.Get(venueID)
	if !ok {
		return domain.Quote{}, decimal.Zero, fmt.Errorf("venue not registered: %s", venueID)
	}

	quote, err := reg.Adapter.Ticker(ctx, symbol)
	if err != nil {
		return domain.Quote{}, decimal.Zero, err
	}

	if !reg.Capabilities.Has(venue.CapOrderBook) {
		return quote, decimal.Zero, nil
	}
	book, err := reg.Adapter.OrderBook(ctx, symbol, orderBookDepth)
	if err != nil {
		return domain.Quote{}, decimal.Zero, err
	}
	return quote, notionalUSD(book.Levels(depthSide)), nil
}

func notionalUSD(levels []domain.Level) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Price.Mul(l.Size))
	}
	return total
}

func pairSymbol(pairID string) string {
	parts := strings.SplitN(pairID, "|", 2)
	return parts[0]
}

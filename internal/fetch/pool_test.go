package fetch

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/net/ratelimit"
	"github.com/arbiq/scanner/internal/venue"
)

type fakeAdapter struct {
	name   string
	quotes map[string]domain.Quote
}

func (f *fakeAdapter) Name() string                        { return f.name }
func (f *fakeAdapter) Capabilities() venue.CapabilitySet    { return venue.CapabilitySet{venue.CapQuotes: true} }
func (f *fakeAdapter) Markets(ctx context.Context) ([]venue.Market, error) { return nil, nil }
func (f *fakeAdapter) Ticker(ctx context.Context, symbol string) (domain.Quote, error) {
	q, ok := f.quotes[symbol]
	if !ok {
		return domain.Quote{}, assertNotFound(symbol)
	}
	return q, nil
}
func (f *fakeAdapter) Tickers(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	out := make([]domain.Quote, 0, len(symbols))
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}
func (f *fakeAdapter) OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	return nil, nil
}
func (f *fakeAdapter) FundingRate(ctx context.Context, symbol string) (venue.FundingRate, error) {
	return venue.FundingRate{}, venue.ErrCapabilityUnsupported
}

func assertNotFound(symbol string) error { return venue.Permanent("fake", errNotFound{symbol}) }

type errNotFound struct{ symbol string }

func (e errNotFound) Error() string { return "not found: " + e.symbol }

func newTestRegistry(adapters ...*fakeAdapter) *venue.Registry {
	reg := venue.NewRegistry()
	for _, a := range adapters {
		reg.Register(a, a.Capabilities())
	}
	return reg
}

func TestPool_FetchTick_GroupsAndMergesByVenue(t *testing.T) {
	binance := &fakeAdapter{name: "binance", quotes: map[string]domain.Quote{
		"BTC": {VenueID: "binance", Symbol: "BTC", Bid: decimal.NewFromInt(100), Ask: decimal.NewFromInt(101)},
	}}
	jupiter := &fakeAdapter{name: "jupiter", quotes: map[string]domain.Quote{
		"BTC": {VenueID: "jupiter", Symbol: "BTC", Bid: decimal.NewFromInt(102), Ask: decimal.NewFromInt(103)},
	}}
	reg := newTestRegistry(binance, jupiter)
	limiter := ratelimit.NewManager()
	limiter.AddProvider("binance", 100, 10)
	limiter.AddProvider("jupiter", 100, 10)

	pool := New(reg, limiter, 4)
	pair := domain.ArbitragePair{
		PairID: "BTC|binance|jupiter", Symbol: "BTC",
		LowVenue:  domain.VenueRef{VenueID: "binance", Type: domain.VenueCEXSpot},
		HighVenue: domain.VenueRef{VenueID: "jupiter", Type: domain.VenuePerpDEX},
	}

	results := pool.FetchTick(context.Background(), []domain.ArbitragePair{pair})
	require.Len(t, results, 2)

	merged := MergeResults(results)
	require.Contains(t, merged, "binance")
	require.Contains(t, merged, "jupiter")
	assert.True(t, merged["binance"]["BTC"].Bid.Equal(decimal.NewFromInt(100)))
}

func TestCompletable_SkipsWhenOneSideMissing(t *testing.T) {
	byVenue := map[string]map[string]domain.Quote{
		"binance": {"BTC": {Symbol: "BTC", ReceivedAtMs: 1000}},
	}
	pair := domain.ArbitragePair{
		Symbol:    "BTC",
		LowVenue:  domain.VenueRef{VenueID: "binance"},
		HighVenue: domain.VenueRef{VenueID: "jupiter"},
	}

	_, _, ok := Completable(pair, byVenue, 1000, 5000)
	assert.False(t, ok, "missing venue side must be skipped, not treated as a failure")
}

func TestCompletable_SkipsStaleQuote(t *testing.T) {
	byVenue := map[string]map[string]domain.Quote{
		"binance": {"BTC": {Symbol: "BTC", ReceivedAtMs: 0}},
		"jupiter": {"BTC": {Symbol: "BTC", ReceivedAtMs: 1000}},
	}
	pair := domain.ArbitragePair{
		Symbol:    "BTC",
		LowVenue:  domain.VenueRef{VenueID: "binance"},
		HighVenue: domain.VenueRef{VenueID: "jupiter"},
	}

	_, _, ok := Completable(pair, byVenue, 10000, 5000)
	assert.False(t, ok)
}

package appctx

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/venue"
)

type fakeQuoteAdapter struct {
	name    string
	quote   domain.Quote
	bids    []domain.Level
	asks    []domain.Level
	calls   int
	tickErr error
}

func (f *fakeQuoteAdapter) Name() string { return f.name }
func (f *fakeQuoteAdapter) Capabilities() venue.CapabilitySet {
	return venue.CapabilitySet{venue.CapQuotes: true, venue.CapOrderBook: true}
}
func (f *fakeQuoteAdapter) Markets(ctx context.Context) ([]venue.Market, error) { return nil, nil }
func (f *fakeQuoteAdapter) Ticker(ctx context.Context, symbol string) (domain.Quote, error) {
	f.calls++
	if f.tickErr != nil {
		return domain.Quote{}, f.tickErr
	}
	return f.quote, nil
}
func (f *fakeQuoteAdapter) Tickers(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	return nil, nil
}
func (f *fakeQuoteAdapter) OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	return domain.NewOrderBook(f.name, symbol, f.bids, f.asks, domain.Timing{})
}
func (f *fakeQuoteAdapter) FundingRate(ctx context.Context, symbol string) (venue.FundingRate, error) {
	return venue.FundingRate{}, venue.ErrCapabilityUnsupported
}

func buildRegistry(low, high *fakeQuoteAdapter) *venue.Registry {
	reg := venue.NewRegistry()
	reg.Register(low, low.Capabilities())
	reg.Register(high, high.Capabilities())
	return reg
}

func TestLiveQuoteSource_SumsOrderBookDepthPerLeg(t *testing.T) {
	low := &fakeQuoteAdapter{
		name:  "kraken",
		quote: domain.Quote{Bid: decimal.NewFromFloat(99.9), Ask: decimal.NewFromFloat(100.0)},
		bids:  []domain.Level{{Price: decimal.NewFromFloat(99.9), Size: decimal.NewFromInt(2)}},
		asks:  []domain.Level{{Price: decimal.NewFromFloat(100.0), Size: decimal.NewFromInt(2)}},
	}
	high := &fakeQuoteAdapter{
		name:  "okx",
		quote: domain.Quote{Bid: decimal.NewFromFloat(101.0), Ask: decimal.NewFromFloat(101.2)},
		bids:  []domain.Level{{Price: decimal.NewFromFloat(101.0), Size: decimal.NewFromInt(3)}},
		asks:  []domain.Level{{Price: decimal.NewFromFloat(101.2), Size: decimal.NewFromInt(3)}},
	}
	source := NewLiveQuoteSource(buildRegistry(low, high))

	snap, err := source.Snapshot(context.Background(), "BTC|kraken|okx", "kraken", "okx")
	require.NoError(t, err)

	assert.True(t, snap.LowDepthUSD.Equal(decimal.NewFromFloat(199.8)))
	assert.True(t, snap.HighDepthUSD.Equal(decimal.NewFromFloat(303.6)))
	assert.True(t, snap.LowBid.Equal(low.quote.Bid))
	assert.True(t, snap.HighAsk.Equal(high.quote.Ask))
}

func TestLiveQuoteSource_CachesRepeatedLegWithinTTL(t *testing.T) {
	low := &fakeQuoteAdapter{name: "kraken", quote: domain.Quote{Bid: decimal.NewFromInt(1), Ask: decimal.NewFromInt(1)}}
	high := &fakeQuoteAdapter{name: "okx", quote: domain.Quote{Bid: decimal.NewFromInt(1), Ask: decimal.NewFromInt(1)}}
	source := NewLiveQuoteSource(buildRegistry(low, high))

	_, err := source.Snapshot(context.Background(), "BTC|kraken|okx", "kraken", "okx")
	require.NoError(t, err)
	_, err = source.Snapshot(context.Background(), "BTC|kraken|okx", "kraken", "okx")
	require.NoError(t, err)

	assert.Equal(t, 1, low.calls, "second snapshot should reuse the cached leg instead of re-fetching")
	assert.Equal(t, 1, high.calls)
}

func TestLiveQuoteSource_UnregisteredVenueErrors(t *testing.T) {
	low := &fakeQuoteAdapter{name: "kraken"}
	source := NewLiveQuoteSource(buildRegistry(low, low))

	_, err := source.Snapshot(context.Background(), "BTC|kraken|nonexistent", "kraken", "nonexistent")
	assert.Error(t, err)
}

package peripheral

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/fetch"
)

type fakePriceSnapshot struct {
	quotes map[string]domain.Quote
}

func (s *fakePriceSnapshot) ReadPricesLatest(ctx context.Context) (map[string]domain.Quote, error) {
	return s.quotes, nil
}

func quoteAt(venueID, symbol string, mid float64) domain.Quote {
	m := decimal.NewFromFloat(mid)
	return domain.Quote{VenueID: venueID, Symbol: symbol, Bid: m, Ask: m, Mid: &m}
}

func TestZScoreEngine_StableRatioNeverAlerts(t *testing.T) {
	source := &fakePriceSnapshot{quotes: map[string]domain.Quote{
		fetch.Key("binance", "BTC"): quoteAt("binance", "BTC", 100),
		fetch.Key("binance", "ETH"): quoteAt("binance", "ETH", 10),
	}}
	notifier := &fakePeripheralNotifier{}
	repo := &fakePeripheralRepo{}
	engine := &ZScoreEngine{
		Source: source, Repo: repo, Notifier: notifier,
		Pairs: []PairConfig{{VenueID: "binance", SymbolA: "BTC", SymbolB: "ETH", ZBound: 3}},
	}

	for i := 0; i < 50; i++ {
		require.NoError(t, engine.Run(context.Background(), false))
	}
	assert.Empty(t, notifier.sent)
	assert.Empty(t, repo.zscore)
}

func TestZScoreEngine_RatioSpikeAlertsAndPersists(t *testing.T) {
	notifier := &fakePeripheralNotifier{}
	repo := &fakePeripheralRepo{}
	engine := &ZScoreEngine{Repo: repo, Notifier: notifier,
		Pairs: []PairConfig{{VenueID: "binance", SymbolA: "BTC", SymbolB: "ETH", ZBound: 2}},
	}

	stable := &fakePriceSnapshot{quotes: map[string]domain.Quote{
		fetch.Key("binance", "BTC"): quoteAt("binance", "BTC", 100),
		fetch.Key("binance", "ETH"): quoteAt("binance", "ETH", 10),
	}}
	engine.Source = stable
	for i := 0; i < 30; i++ {
		require.NoError(t, engine.Run(context.Background(), false))
	}
	require.Empty(t, notifier.sent, "ratio has not moved yet")

	spiked := &fakePriceSnapshot{quotes: map[string]domain.Quote{
		fetch.Key("binance", "BTC"): quoteAt("binance", "BTC", 200),
		fetch.Key("binance", "ETH"): quoteAt("binance", "ETH", 10),
	}}
	engine.Source = spiked
	require.NoError(t, engine.Run(context.Background(), false))

	require.Len(t, notifier.sent, 1)
	require.Len(t, repo.zscore, 1)
	assert.Equal(t, "BTC", repo.zscore[0].SymbolA)
	assert.Equal(t, "ETH", repo.zscore[0].SymbolB)
	assert.Greater(t, repo.zscore[0].ZScore, 2.0)
}

func TestZScoreEngine_DryRunAdvancesWindowWithoutAlerting(t *testing.T) {
	notifier := &fakePeripheralNotifier{}
	repo := &fakePeripheralRepo{}
	engine := &ZScoreEngine{Repo: repo, Notifier: notifier,
		Pairs: []PairConfig{{VenueID: "binance", SymbolA: "BTC", SymbolB: "ETH", ZBound: 2}},
	}

	stable := &fakePriceSnapshot{quotes: map[string]domain.Quote{
		fetch.Key("binance", "BTC"): quoteAt("binance", "BTC", 100),
		fetch.Key("binance", "ETH"): quoteAt("binance", "ETH", 10),
	}}
	engine.Source = stable
	for i := 0; i < 30; i++ {
		require.NoError(t, engine.Run(context.Background(), true))
	}

	spiked := &fakePriceSnapshot{quotes: map[string]domain.Quote{
		fetch.Key("binance", "BTC"): quoteAt("binance", "BTC", 200),
		fetch.Key("binance", "ETH"): quoteAt("binance", "ETH", 10),
	}}
	engine.Source = spiked
	require.NoError(t, engine.Run(context.Background(), true))

	assert.Empty(t, notifier.sent, "dry run must never alert even once the window is warm")
	assert.Empty(t, repo.zscore)
}

func TestZScoreEngine_MissingLegSkipsPair(t *testing.T) {
	source := &fakePriceSnapshot{quotes: map[string]domain.Quote{
		fetch.Key("binance", "BTC"): quoteAt("binance", "BTC", 100),
	}}
	notifier := &fakePeripheralNotifier{}
	repo := &fakePeripheralRepo{}
	engine := &ZScoreEngine{Source: source, Repo: repo, Notifier: notifier,
		Pairs: []PairConfig{{VenueID: "binance", SymbolA: "BTC", SymbolB: "ETH", ZBound: 2}},
	}

	require.NoError(t, engine.Run(context.Background(), false))
	assert.Empty(t, notifier.sent)
}

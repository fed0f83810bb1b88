package peripheral

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/safety"
	"github.com/arbiq/scanner/internal/venue"
)

type fakeDepegAdapter struct {
	name  string
	quote domain.Quote
}

func (f *fakeDepegAdapter) Name() string { return f.name }
func (f *fakeDepegAdapter) Capabilities() venue.CapabilitySet {
	return venue.CapabilitySet{venue.CapQuotes: true}
}
func (f *fakeDepegAdapter) Markets(ctx context.Context) ([]venue.Market, error) { return nil, nil }
func (f *fakeDepegAdapter) Ticker(ctx context.Context, symbol string) (domain.Quote, error) {
	return f.quote, nil
}
func (f *fakeDepegAdapter) Tickers(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	return nil, nil
}
func (f *fakeDepegAdapter) OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	return nil, nil
}
func (f *fakeDepegAdapter) FundingRate(ctx context.Context, symbol string) (venue.FundingRate, error) {
	return venue.FundingRate{}, venue.ErrCapabilityUnsupported
}

func depegThresholds() safety.Thresholds {
	return safety.Thresholds{
		MaxBidAskSpreadPct: decimal.NewFromFloat(1.0),
		MaxLatencyMs:       1000,
	}
}

func TestDepegMonitor_DeviationBeyondThresholdAlerts(t *testing.T) {
	venues := venue.NewRegistry()
	mid := decimal.NewFromFloat(0.97)
	adapter := &fakeDepegAdapter{name: "binance", quote: domain.Quote{
		VenueID: "binance", Symbol: "USDT",
		Bid: mid, Ask: mid, Mid: &mid, LatencyMs: 50,
	}}
	venues.Register(adapter, adapter.Capabilities())

	notifier := &fakePeripheralNotifier{}
	monitor := &DepegMonitor{
		Venues: venues, Symbols: []string{"USDT"}, VenueIDs: []string{"binance"},
		DepegBps: 50, Thresholds: depegThresholds(), Notifier: notifier,
	}

	require.NoError(t, monitor.Run(context.Background(), false))
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0].Text, "USDT")
}

func TestDepegMonitor_SmallDeviationStaysQuiet(t *testing.T) {
	venues := venue.NewRegistry()
	mid := decimal.NewFromFloat(0.999)
	adapter := &fakeDepegAdapter{name: "binance", quote: domain.Quote{
		VenueID: "binance", Symbol: "USDT",
		Bid: mid, Ask: mid, Mid: &mid, LatencyMs: 50,
	}}
	venues.Register(adapter, adapter.Capabilities())

	notifier := &fakePeripheralNotifier{}
	monitor := &DepegMonitor{
		Venues: venues, Symbols: []string{"USDT"}, VenueIDs: []string{"binance"},
		DepegBps: 50, Thresholds: depegThresholds(), Notifier: notifier,
	}

	require.NoError(t, monitor.Run(context.Background(), false))
	assert.Empty(t, notifier.sent)
}

func TestDepegMonitor_WideSpreadSuppressesAlertDespiteDeviation(t *testing.T) {
	venues := venue.NewRegistry()
	mid := decimal.NewFromFloat(0.97)
	bid := decimal.NewFromFloat(0.90)
	ask := decimal.NewFromFloat(1.04)
	adapter := &fakeDepegAdapter{name: "binance", quote: domain.Quote{
		VenueID: "binance", Symbol: "USDT",
		Bid: bid, Ask: ask, Mid: &mid, LatencyMs: 50,
	}}
	venues.Register(adapter, adapter.Capabilities())

	notifier := &fakePeripheralNotifier{}
	monitor := &DepegMonitor{
		Venues: venues, Symbols: []string{"USDT"}, VenueIDs: []string{"binance"},
		DepegBps: 50, Thresholds: depegThresholds(), Notifier: notifier,
	}

	require.NoError(t, monitor.Run(context.Background(), false))
	assert.Empty(t, notifier.sent, "a spread this wide should suppress the alert via CheckBidAskSpread")
}

func TestDepegMonitor_DryRunEvaluatesButEmitsNothing(t *testing.T) {
	venues := venue.NewRegistry()
	mid := decimal.NewFromFloat(0.97)
	adapter := &fakeDepegAdapter{name: "binance", quote: domain.Quote{
		VenueID: "binance", Symbol: "USDT",
		Bid: mid, Ask: mid, Mid: &mid, LatencyMs: 50,
	}}
	venues.Register(adapter, adapter.Capabilities())

	notifier := &fakePeripheralNotifier{}
	monitor := &DepegMonitor{
		Venues: venues, Symbols: []string{"USDT"}, VenueIDs: []string{"binance"},
		DepegBps: 50, Thresholds: depegThresholds(), Notifier: notifier,
	}

	require.NoError(t, monitor.Run(context.Background(), true))
	assert.Empty(t, notifier.sent)
}

package messaging

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
)

func TestFormatSignal_IncludesCoreFields(t *testing.T) {
	sig := domain.ValidatedSignal{
		Symbol:               "BTC",
		StrategyType:         "SP",
		LowVenue:             "binance",
		HighVenue:            "jupiter",
		Spread:               domain.SpreadBreakdown{NetPct: decimal.NewFromFloat(1.234)},
		SuggestedPositionUSD: decimal.NewFromInt(5000),
		Actions: []domain.Action{
			{Step: 1, Venue: "binance", Description: "Buy BTC on binance at 100"},
		},
		Links: domain.Links{BuyVenueURL: "https://binance.example/btc"},
	}

	n := FormatSignal(sig)

	assert.Contains(t, n.Text, "BTC")
	assert.Contains(t, n.Text, "SP")
	assert.Contains(t, n.Text, "1.234")
	assert.Contains(t, n.Text, "5000.00")
	require.Len(t, n.Buttons, 1)
	assert.Equal(t, "https://binance.example/btc", n.Buttons[0].URL)
}

func TestFormatSignal_LaggingIncludesLaggingInfo(t *testing.T) {
	sig := domain.ValidatedSignal{
		Symbol: "ETH",
		LaggingInfo: &domain.LaggingInfo{
			LaggingVenue:        "okx",
			DeviationPct:        decimal.NewFromFloat(4.98),
			OtherExchangesCount: 4,
		},
	}

	n := FormatSignal(sig)
	assert.Contains(t, n.Text, "okx")
	assert.Contains(t, n.Text, "4 other venues")
}

func TestFormatFundingAlert_CarriesFundingBpsNotSpread(t *testing.T) {
	n := FormatFundingAlert("okx", "ETH", 12.5)
	assert.Contains(t, n.Text, "12.50 bps")
	assert.NotContains(t, n.Text, "spread")
}

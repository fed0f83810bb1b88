package signalbuilder

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/safety"
)

func samplePair() domain.ArbitragePair {
	return domain.ArbitragePair{
		PairID:    "BTC|binance|jupiter",
		Symbol:    "BTC",
		LowVenue:  domain.VenueRef{VenueID: "binance", Type: domain.VenueCEXSpot},
		HighVenue: domain.VenueRef{VenueID: "jupiter", Type: domain.VenuePerpDEX},
	}
}

func passingResult() safety.Result {
	return safety.Result{
		Passed:               true,
		Checks:               []domain.CheckResult{{Name: "exit_liquidity", Passed: true}},
		SuggestedPositionUSD: decimal.NewFromInt(5000),
	}
}

func TestStrategyType_KnownPairs(t *testing.T) {
	assert.Equal(t, "SP", StrategyType(domain.VenueCEXSpot, domain.VenuePerpDEX))
	assert.Equal(t, "SP", StrategyType(domain.VenuePerpDEX, domain.VenueCEXSpot))
	assert.Equal(t, "SS", StrategyType(domain.VenueCEXSpot, domain.VenueCEXSpot))
	assert.Equal(t, "DD", StrategyType(domain.VenueDEXSpot, domain.VenueDEXSpot))
	assert.Equal(t, "FF", StrategyType(domain.VenueCEXFutures, domain.VenueCEXFutures))
}

func TestBuild_DerivesStrategyTypeFromVenuePair(t *testing.T) {
	in := Input{
		Pair:             samplePair(),
		BuyPrice:         decimal.NewFromInt(100),
		SellPrice:        decimal.NewFromFloat(100.5),
		ExitLiquidityUSD: decimal.NewFromInt(10000),
		ChartURLFmt:      "https://coinmarketcap.com/currencies/%s",
	}

	sig := Build(in, passingResult())

	require.Equal(t, "SP", sig.StrategyType)
	assert.Equal(t, domain.SignalAuto, sig.SignalType)
	assert.NotEmpty(t, sig.ID)
	assert.Len(t, sig.Actions, 2)
	assert.Equal(t, "https://coinmarketcap.com/currencies/BTC", sig.Links.ChartURL)
	assert.True(t, sig.Passed())
}

func TestBuild_LaggingOverridesStrategyType(t *testing.T) {
	in := Input{
		Pair:             samplePair(),
		BuyPrice:         decimal.NewFromInt(100),
		SellPrice:        decimal.NewFromFloat(100.5),
		ExitLiquidityUSD: decimal.NewFromInt(10000),
		LaggingInfo: &domain.LaggingInfo{
			LaggingVenue:        "jupiter",
			DeviationPct:        decimal.NewFromFloat(3.1),
			OtherExchangesCount: 4,
		},
	}

	sig := Build(in, passingResult())

	assert.Equal(t, "LG", sig.StrategyType)
	assert.Equal(t, domain.SignalLagging, sig.SignalType)
	require.NotNil(t, sig.LaggingInfo)
	assert.Equal(t, "jupiter", sig.LaggingInfo.LaggingVenue)
}

func TestBuild_NeverEmitsOnFailure_CallerMustCheckPassed(t *testing.T) {
	failing := safety.Result{
		Passed: false,
		Checks: []domain.CheckResult{{Name: "direction_validity", Passed: false}},
	}
	sig := Build(Input{Pair: samplePair()}, failing)

	assert.False(t, sig.Passed(), "signal built from a failing battery must still report Passed()==false so callers can suppress emission")
}

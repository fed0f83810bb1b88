package safety

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/track"
)

func baseThresholds() Thresholds {
	return Thresholds{
		MinExitLiquidityUSD:    decimal.NewFromInt(1000),
		MaxSlippagePct:         decimal.NewFromFloat(0.5),
		MaxPriceAgeMs:          5000,
		MaxSpreadAgeHours:      4,
		MaxBidAskSpreadPct:     decimal.NewFromFloat(0.4),
		MaxLatencyMs:           2000,
		MinDepthVsHistoryRatio: 0.5,
		MinHistorySamples:      20,
		MaxPositionToExitRatio: decimal.NewFromFloat(0.5),
		HardPositionCapUSD:     decimal.NewFromInt(HardPositionCap),
	}
}

func passingSignal() ProtoSignal {
	return ProtoSignal{
		PairID:    "BTC|binance|jupiter",
		LowVenue:  domain.VenueRef{VenueID: "binance", Type: domain.VenueCEXSpot},
		HighVenue: domain.VenueRef{VenueID: "jupiter", Type: domain.VenuePerpDEX},
		LowQuote: domain.Quote{
			Bid: decimal.NewFromInt(100), Ask: decimal.NewFromFloat(100.1), ReceivedAtMs: 1000,
		},
		HighQuote: domain.Quote{
			Bid: decimal.NewFromFloat(100.5), Ask: decimal.NewFromFloat(100.6), ReceivedAtMs: 1000,
		},
		BuySlippagePct:    decimal.NewFromFloat(0.1),
		SellSlippagePct:   decimal.NewFromFloat(0.1),
		ExitLiquidityUSD:  decimal.NewFromInt(10000),
		NowMs:             1500,
		Timing:            track.TimingData{LatencyDiffMs: 50, MaxLatencyMs: 100},
		SpreadAgeHours:    1,
		CurrentDepthRatio: 0.9,
		HasHistoryRatio:   true,
	}
}

func TestEvaluate_AllPass(t *testing.T) {
	result := Evaluate(passingSignal(), baseThresholds())

	assert.True(t, result.Passed)
	assert.Len(t, result.Checks, 9)
	assert.True(t, result.SuggestedPositionUSD.Equal(decimal.NewFromInt(5000)))
}

func TestEvaluate_FailsDirectionValidity(t *testing.T) {
	sig := passingSignal()
	sig.HighVenue.Type = domain.VenueCEXSpot

	result := Evaluate(sig, baseThresholds())

	assert.False(t, result.Passed)
	var found bool
	for _, c := range result.Checks {
		if c.Name == "direction_validity" {
			found = true
			assert.False(t, c.Passed)
		}
	}
	assert.True(t, found)
}

func TestEvaluate_AllChecksRunEvenOnFailure(t *testing.T) {
	sig := passingSignal()
	sig.ExitLiquidityUSD = decimal.Zero
	sig.HighVenue.Type = domain.VenueCEXSpot

	result := Evaluate(sig, baseThresholds())

	assert.False(t, result.Passed)
	assert.Len(t, result.Checks, 9, "every check must run regardless of earlier failures")
}

func TestSuggestedPosition_CapsAtHardLimit(t *testing.T) {
	pos := suggestedPosition(decimal.NewFromInt(1_000_000), decimal.NewFromInt(HardPositionCap))
	assert.True(t, pos.Equal(decimal.NewFromInt(HardPositionCap)))
}

// Package signalbuilder implements the Signal Builder component (§4.8):
// combines a proto-signal and its Safety Validator verdict into an
// immutable domain.ValidatedSignal.
package signalbuilder

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/safety"
)

// strategyTable is the explicit venue-type cross-product from §3.1. The
// lagging case (LG) overrides this table and is assigned directly by
// Build when laggingInfo is non-nil.
var strategyTable = map[[2]domain.VenueType]string{
	{domain.VenueDEXSpot, domain.VenueCEXFutures}: "DF",
	{domain.VenueDEXSpot, domain.VenuePerpDEX}:    "DP",
	{domain.VenueCEXSpot, domain.VenueCEXSpot}:    "SS",
	{domain.VenueCEXSpot, domain.VenueCEXFutures}: "SF",
	{domain.VenueCEXSpot, domain.VenuePerpDEX}:    "SP",
	{domain.VenueDEXSpot, domain.VenueDEXSpot}:    "DD",
	{domain.VenueCEXFutures, domain.VenueCEXFutures}: "FF",
	{domain.VenuePerpDEX, domain.VenuePerpDEX}:       "PP",
}

// StrategyType looks up the §3.1 taxonomy for a (low, high) venue-type
// pairing, trying both orientations since the table is defined low→high
// but a pair's cheaper side can be either venue type.
func StrategyType(low, high domain.VenueType) string {
	if s, ok := strategyTable[[2]domain.VenueType{low, high}]; ok {
		return s
	}
	if s, ok := strategyTable[[2]domain.VenueType{high, low}]; ok {
		return s
	}
	return "SS"
}

// Input bundles everything Build needs beyond the safety.Result.
type Input struct {
	Pair          domain.ArbitragePair
	BuyPrice      decimal.Decimal
	SellPrice     decimal.Decimal
	Spread        domain.SpreadBreakdown
	ExitLiquidityUSD decimal.Decimal
	Timing        domain.Timing
	LaggingInfo   *domain.LaggingInfo
	ChartURLFmt   string // e.g. "https://coinmarketcap.com/currencies/%s"
	VenueLinkURLs map[string]string // venue_id -> deep link base URL
}

// Build assembles a ValidatedSignal from a validator Result. Callers must
// check result.Passed before persisting or emitting — per §4.8, signals
// that fail the battery are still constructed for diagnostics, but "never
// emitted."
func Build(in Input, result safety.Result) domain.ValidatedSignal {
	signalType := domain.SignalAuto
	strategyType := StrategyType(in.Pair.LowVenue.Type, in.Pair.HighVenue.Type)
	if in.LaggingInfo != nil {
		signalType = domain.SignalLagging
		strategyType = "LG"
	}

	now := time.Now().UTC()
	sig := domain.ValidatedSignal{
		ID:                   uuid.NewString(),
		PairID:               in.Pair.PairID,
		Symbol:               in.Pair.Symbol,
		SignalType:           signalType,
		StrategyType:         strategyType,
		LowVenue:             in.Pair.LowVenue.VenueID,
		HighVenue:            in.Pair.HighVenue.VenueID,
		BuyPrice:             in.BuyPrice,
		SellPrice:            in.SellPrice,
		Spread:               in.Spread,
		Liquidity:            domain.Liquidity{ExitUSD: in.ExitLiquidityUSD},
		Timing:               in.Timing,
		SuggestedPositionUSD: result.SuggestedPositionUSD,
		PositionSizeUSD:      result.SuggestedPositionUSD,
		SafetyChecks:         result.Checks,
		LaggingInfo:          in.LaggingInfo,
		Actions:              renderActions(in),
		Links:                renderLinks(in),
		CreatedAt:            now,
		Status:               "new",
	}
	return sig
}

func renderActions(in Input) []domain.Action {
	return []domain.Action{
		{
			Step:        1,
			Venue:       in.Pair.LowVenue.VenueID,
			Description: fmt.Sprintf("Buy %s on %s at %s", in.Pair.Symbol, in.Pair.LowVenue.VenueID, in.BuyPrice),
		},
		{
			Step:        2,
			Venue:       in.Pair.HighVenue.VenueID,
			Description: fmt.Sprintf("Sell/short %s on %s at %s", in.Pair.Symbol, in.Pair.HighVenue.VenueID, in.SellPrice),
		},
	}
}

func renderLinks(in Input) domain.Links {
	links := domain.Links{
		BuyVenueURL:  in.VenueLinkURLs[in.Pair.LowVenue.VenueID],
		SellVenueURL: in.VenueLinkURLs[in.Pair.HighVenue.VenueID],
	}
	if in.ChartURLFmt != "" {
		links.ChartURL = fmt.Sprintf(in.ChartURLFmt, in.Pair.Symbol)
	}
	return links
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType distinguishes how a ValidatedSignal was produced.
type SignalType string

const (
	SignalAuto    SignalType = "auto"
	SignalManual  SignalType = "manual"
	SignalLagging SignalType = "lagging"
)

// SpreadBreakdown is the full decomposition of a candidate's spread, per the
// Calculators component (§4.4).
type SpreadBreakdown struct {
	NominalPct       decimal.Decimal `json:"nominal_pct"`
	RealPct          decimal.Decimal `json:"real_pct"`
	SlippageLossPct  decimal.Decimal `json:"slippage_loss_pct"`
	FeesPct          decimal.Decimal `json:"fees_pct"`
	NetPct           decimal.Decimal `json:"net_pct"`
}

// Liquidity records the exit-side depth backing a candidate.
type Liquidity struct {
	ExitUSD decimal.Decimal `json:"exit_usd"`
}

// CheckResult is one row of the Safety Validator's ordered battery (§4.6).
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// LaggingInfo is populated only for signal_type=lagging (§4.7).
type LaggingInfo struct {
	LaggingVenue      string          `json:"lagging_venue"`
	DeviationPct      decimal.Decimal `json:"deviation_pct"`
	OtherExchangesCount int           `json:"other_exchanges_count"`
}

// Action is one human-directed execution step rendered by the Signal
// Builder (§4.8): e.g. "Buy 0.5 BTC on jupiter at 50,000".
type Action struct {
	Step        int    `json:"step"`
	Venue       string `json:"venue"`
	Description string `json:"description"`
}

// Links are deep links attached to a signal for operator convenience.
type Links struct {
	BuyVenueURL  string `json:"buy_venue_url,omitempty"`
	SellVenueURL string `json:"sell_venue_url,omitempty"`
	ChartURL     string `json:"chart_url,omitempty"`
}

// ValidatedSignal is the immutable record emitted once a proto-signal has
// passed (or been scored by) the Safety Validator.
type ValidatedSignal struct {
	ID                  string          `json:"id"`
	PairID              string          `json:"pair_id"`
	Symbol              string          `json:"symbol"`
	SignalType          SignalType      `json:"signal_type"`
	StrategyType        string          `json:"strategy_type"`
	LowVenue            string          `json:"low_venue"`
	HighVenue           string          `json:"high_venue"`
	BuyPrice            decimal.Decimal `json:"buy_price"`
	SellPrice           decimal.Decimal `json:"sell_price"`
	Spread              SpreadBreakdown `json:"spread"`
	Liquidity           Liquidity       `json:"liquidity"`
	Timing              Timing          `json:"timing"`
	PositionSizeUSD     decimal.Decimal `json:"position_size_usd"`
	SuggestedPositionUSD decimal.Decimal `json:"suggested_position_usd"`
	SafetyChecks        []CheckResult   `json:"safety_checks"`
	LaggingInfo         *LaggingInfo    `json:"lagging_info,omitempty"`
	Actions             []Action        `json:"actions"`
	Links               Links           `json:"links"`
	CreatedAt           time.Time       `json:"created_at"`
	Status              string          `json:"status"`
}

// Passed reports whether every safety check in the battery passed.
func (s *ValidatedSignal) Passed() bool {
	for _, c := range s.SafetyChecks {
		if !c.Passed {
			return false
		}
	}
	return true
}

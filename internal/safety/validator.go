// Package safety implements the Safety Validator component (§4.6): a
// fixed, ordered, non-short-circuiting battery of checks run against a
// proto-signal before it may be emitted.
package safety

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/track"
)

// HardPositionCap bounds suggested_position_usd absent an override (§4.6).
const HardPositionCap = 50_000

// Thresholds bundles every configured value the battery checks against;
// built from config.Settings at the orchestrator's wiring point (§9).
type Thresholds struct {
	MinExitLiquidityUSD    decimal.Decimal
	MaxSlippagePct         decimal.Decimal
	MaxPriceAgeMs          int64
	MaxSpreadAgeHours      float64
	MaxBidAskSpreadPct     decimal.Decimal
	MaxLatencyMs           int64
	MinDepthVsHistoryRatio float64
	MinHistorySamples      int
	MaxPositionToExitRatio decimal.Decimal
	HardPositionCapUSD     decimal.Decimal
}

// ProtoSignal is the pre-validation candidate the battery evaluates.
type ProtoSignal struct {
	PairID         string
	LowVenue       domain.VenueRef
	HighVenue      domain.VenueRef
	LowQuote       domain.Quote
	HighQuote      domain.Quote
	BuySlippagePct decimal.Decimal
	SellSlippagePct decimal.Decimal
	ExitLiquidityUSD decimal.Decimal
	NowMs          int64
	Timing         track.TimingData
	SpreadAgeHours float64
	CurrentDepthRatio float64
	HasHistoryRatio bool
}

// Result is the full battery outcome: every check runs regardless of
// earlier failures so the caller can surface every failing reason at once.
type Result struct {
	Passed           bool
	Checks           []domain.CheckResult
	SuggestedPositionUSD decimal.Decimal
}

// Evaluate runs the full ordered battery against p and computes the
// suggested position size (§4.6). All nine checks always run.
func Evaluate(p ProtoSignal, th Thresholds) Result {
	checks := make([]domain.CheckResult, 0, 9)

	checks = append(checks, checkExitLiquidity(p, th))
	checks = append(checks, checkMaxSlippage(p, th))
	checks = append(checks, checkDirectionValidity(p))
	checks = append(checks, checkSpreadFreshness(p, th))
	checks = append(checks, checkSpreadAge(p, th))
	checks = append(checks, CheckBidAskSpread(p, th))
	checks = append(checks, CheckLatency(p, th))
	checks = append(checks, checkDepthVsHistory(p, th))

	suggested := suggestedPosition(p.ExitLiquidityUSD, th.HardPositionCapUSD)
	checks = append(checks, checkPositionToExitRatio(p, th, suggested))

	passed := true
	for _, c := range checks {
		if !c.Passed {
			passed = false
			break
		}
	}

	return Result{Passed: passed, Checks: checks, SuggestedPositionUSD: suggested}
}

// suggestedPosition implements suggested_position_usd = min(exit_usd * 0.5,
// hard_cap) (§4.6).
func suggestedPosition(exitUSD, hardCap decimal.Decimal) decimal.Decimal {
	half := exitUSD.Mul(decimal.NewFromFloat(0.5))
	if half.GreaterThan(hardCap) {
		return hardCap
	}
	return half
}

func checkExitLiquidity(p ProtoSignal, th Thresholds) domain.CheckResult {
	ok := p.ExitLiquidityUSD.GreaterThanOrEqual(th.MinExitLiquidityUSD)
	return domain.CheckResult{
		Name:   "exit_liquidity",
		Passed: ok,
		Detail: fmt.Sprintf("exit_usd=%s min=%s", p.ExitLiquidityUSD, th.MinExitLiquidityUSD),
	}
}

func checkMaxSlippage(p ProtoSignal, th Thresholds) domain.CheckResult {
	ok := p.BuySlippagePct.Abs().LessThanOrEqual(th.MaxSlippagePct) &&
		p.SellSlippagePct.Abs().LessThanOrEqual(th.MaxSlippagePct)
	return domain.CheckResult{
		Name:   "max_slippage",
		Passed: ok,
		Detail: fmt.Sprintf("buy=%s sell=%s max=%s", p.BuySlippagePct, p.SellSlippagePct, th.MaxSlippagePct),
	}
}

func checkDirectionValidity(p ProtoSignal) domain.CheckResult {
	ok := p.HighVenue.Type.Shortable()
	return domain.CheckResult{
		Name:   "direction_validity",
		Passed: ok,
		Detail: fmt.Sprintf("high_venue=%s type=%s", p.HighVenue.VenueID, p.HighVenue.Type),
	}
}

func checkSpreadFreshness(p ProtoSignal, th Thresholds) domain.CheckResult {
	lowFresh := p.LowQuote.Fresh(p.NowMs, th.MaxPriceAgeMs)
	highFresh := p.HighQuote.Fresh(p.NowMs, th.MaxPriceAgeMs)
	timingFresh := p.Timing.Fresh(th.MaxLatencyMs)
	ok := lowFresh && highFresh && timingFresh
	return domain.CheckResult{
		Name:   "spread_freshness",
		Passed: ok,
		Detail: fmt.Sprintf("low_fresh=%v high_fresh=%v timing_fresh=%v", lowFresh, highFresh, timingFresh),
	}
}

func checkSpreadAge(p ProtoSignal, th Thresholds) domain.CheckResult {
	ok := p.SpreadAgeHours <= th.MaxSpreadAgeHours
	return domain.CheckResult{
		Name:   "spread_age",
		Passed: ok,
		Detail: fmt.Sprintf("age_hours=%.2f max=%.2f", p.SpreadAgeHours, th.MaxSpreadAgeHours),
	}
}

// CheckBidAskSpread is the battery's bid_ask_spread check, exported so the
// peripheral stablecoin depeg monitor (§4.12) can reuse it directly against
// its own thresholds instead of re-implementing quoted-spread logic.
func CheckBidAskSpread(p ProtoSignal, th Thresholds) domain.CheckResult {
	lowSpread := p.LowQuote.BidAskSpreadPct()
	highSpread := p.HighQuote.BidAskSpreadPct()
	ok := lowSpread.LessThanOrEqual(th.MaxBidAskSpreadPct) && highSpread.LessThanOrEqual(th.MaxBidAskSpreadPct)
	return domain.CheckResult{
		Name:   "bid_ask_spread",
		Passed: ok,
		Detail: fmt.Sprintf("low=%s high=%s max=%s", lowSpread, highSpread, th.MaxBidAskSpreadPct),
	}
}

// CheckLatency is the battery's latency check, exported for the same reuse
// reason as CheckBidAskSpread.
func CheckLatency(p ProtoSignal, th Thresholds) domain.CheckResult {
	ok := p.Timing.MaxLatencyMs <= th.MaxLatencyMs && p.Timing.LatencyDiffMs <= th.MaxLatencyMs
	return domain.CheckResult{
		Name:   "latency",
		Passed: ok,
		Detail: fmt.Sprintf("max_ms=%d diff_ms=%d cap_ms=%d", p.Timing.MaxLatencyMs, p.Timing.LatencyDiffMs, th.MaxLatencyMs),
	}
}

func checkDepthVsHistory(p ProtoSignal, th Thresholds) domain.CheckResult {
	if !p.HasHistoryRatio {
		return domain.CheckResult{Name: "depth_vs_history", Passed: true, Detail: "insufficient history samples, check skipped"}
	}
	ok := p.CurrentDepthRatio >= th.MinDepthVsHistoryRatio
	return domain.CheckResult{
		Name:   "depth_vs_history",
		Passed: ok,
		Detail: fmt.Sprintf("ratio=%.3f min=%.3f", p.CurrentDepthRatio, th.MinDepthVsHistoryRatio),
	}
}

func checkPositionToExitRatio(p ProtoSignal, th Thresholds, suggested decimal.Decimal) domain.CheckResult {
	if p.ExitLiquidityUSD.Sign() == 0 {
		return domain.CheckResult{Name: "position_to_exit_ratio", Passed: false, Detail: "exit liquidity is zero"}
	}
	ratio := suggested.Div(p.ExitLiquidityUSD)
	ok := ratio.LessThanOrEqual(th.MaxPositionToExitRatio)
	return domain.CheckResult{
		Name:   "position_to_exit_ratio",
		Passed: ok,
		Detail: fmt.Sprintf("ratio=%s max=%s", ratio, th.MaxPositionToExitRatio),
	}
}

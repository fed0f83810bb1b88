// Package calc implements the Calculators component (§4.4): executable
// price, spread decomposition, and depth-within-slippage, all operating on
// domain.OrderBook levels via decimal.Decimal arithmetic.
package calc

import (
	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ExecutableFill is the result of walking an order book side to fill a
// target USD notional.
type ExecutableFill struct {
	ExecutablePrice   decimal.Decimal
	SlippagePct       decimal.Decimal
	FilledUSD         decimal.Decimal
	UnfilledUSD       decimal.Decimal
	InsufficientDepth bool
}

// ExecutablePrice walks book levels on side, accumulating (price, size)
// until targetUSD is filled. sign is +1 when walking asks (buying — price
// moves against the taker upward) and -1 when walking bids (selling —
// price moves against the taker downward); SlippagePct is signed so a
// caller can sum both legs directly.
func ExecutablePrice(ob *domain.OrderBook, side domain.Side, targetUSD decimal.Decimal, sign int) ExecutableFill {
	levels := ob.Levels(side)
	if len(levels) == 0 {
		return ExecutableFill{UnfilledUSD: targetUSD, InsufficientDepth: true}
	}
	bestPrice := levels[0].Price

	remaining := targetUSD
	filledUSD := decimal.Zero
	weightedCost := decimal.Zero // sum(price * qty_usd_filled_at_that_level)

	for _, lvl := range levels {
		if remaining.Sign() <= 0 {
			break
		}
		levelUSD := lvl.Price.Mul(lvl.Size)
		takeUSD := levelUSD
		if takeUSD.GreaterThan(remaining) {
			takeUSD = remaining
		}
		weightedCost = weightedCost.Add(lvl.Price.Mul(takeUSD))
		filledUSD = filledUSD.Add(takeUSD)
		remaining = remaining.Sub(takeUSD)
	}

	unfilled := remaining
	insufficient := unfilled.Sign() > 0

	var execPrice decimal.Decimal
	if filledUSD.Sign() > 0 {
		execPrice = weightedCost.Div(filledUSD)
	} else {
		execPrice = bestPrice
	}

	slippage := decimal.Zero
	if bestPrice.Sign() != 0 {
		slippage = execPrice.Div(bestPrice).Sub(decimal.NewFromInt(1)).Mul(hundred).Mul(decimal.NewFromInt(int64(sign)))
	}

	return ExecutableFill{
		ExecutablePrice:   execPrice,
		SlippagePct:       slippage,
		FilledUSD:         filledUSD,
		UnfilledUSD:       unfilled,
		InsufficientDepth: insufficient,
	}
}

// SpreadBreakdown is an alias of domain.SpreadBreakdown kept local so this
// package's doc comments can describe the computation alongside the type;
// the two are structurally identical.
type SpreadBreakdown = domain.SpreadBreakdown

// Spread computes the full spread decomposition for one candidate given
// the best and executable prices on both legs plus the two venues'
// declared taker fees (§4.4).
func Spread(buyBest, sellBest, buyExec, sellExec, buyFeePct, sellFeePct decimal.Decimal) SpreadBreakdown {
	nominal := decimal.Zero
	if buyBest.Sign() != 0 {
		nominal = sellBest.Sub(buyBest).Div(buyBest).Mul(hundred)
	}
	real := decimal.Zero
	if buyExec.Sign() != 0 {
		real = sellExec.Sub(buyExec).Div(buyExec).Mul(hundred)
	}
	slippageLoss := nominal.Sub(real)
	fees := buyFeePct.Add(sellFeePct)
	net := real.Sub(fees)

	return SpreadBreakdown{
		NominalPct:      nominal,
		RealPct:         real,
		SlippageLossPct: slippageLoss,
		FeesPct:         fees,
		NetPct:          net,
	}
}

// Emittable reports whether a spread breakdown clears both thresholds from
// §4.4: the net spread floor and the sanity-check upper bound on the
// unadjusted real spread.
func Emittable(s SpreadBreakdown, minSpreadPct, maxSpreadPct decimal.Decimal) bool {
	return s.NetPct.GreaterThanOrEqual(minSpreadPct) && s.RealPct.LessThanOrEqual(maxSpreadPct)
}

// DepthWithinSlippage walks side from the touch, accumulating USD depth
// until the cumulative price move from the best price would exceed
// maxSlippagePct, and returns the USD available within that envelope.
func DepthWithinSlippage(ob *domain.OrderBook, side domain.Side, maxSlippagePct decimal.Decimal) decimal.Decimal {
	levels := ob.Levels(side)
	if len(levels) == 0 {
		return decimal.Zero
	}
	best := levels[0].Price
	total := decimal.Zero

	for _, lvl := range levels {
		var movePct decimal.Decimal
		if best.Sign() != 0 {
			movePct = lvl.Price.Sub(best).Div(best).Abs().Mul(hundred)
		}
		if movePct.GreaterThan(maxSlippagePct) {
			break
		}
		total = total.Add(lvl.Price.Mul(lvl.Size))
	}
	return total
}

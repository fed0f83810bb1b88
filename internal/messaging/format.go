package messaging

import (
	"fmt"
	"strings"

	"github.com/arbiq/scanner/internal/domain"
)

// FormatSignal renders a ValidatedSignal into the Notification the signal
// emitter sends once it has cleared the gate (§4.8 → §6).
func FormatSignal(sig domain.ValidatedSignal) Notification {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* arbitrage — %s\n", sig.Symbol, sig.StrategyType)
	fmt.Fprintf(&b, "%s → %s\n", sig.LowVenue, sig.HighVenue)
	fmt.Fprintf(&b, "Net spread: %s%%\n", sig.Spread.NetPct.StringFixed(3))
	fmt.Fprintf(&b, "Suggested position: $%s\n", sig.SuggestedPositionUSD.StringFixed(2))

	if sig.LaggingInfo != nil {
		fmt.Fprintf(&b, "Lagging venue: %s (%.2f%% off median, %d other venues)\n",
			sig.LaggingInfo.LaggingVenue, sig.LaggingInfo.DeviationPct.InexactFloat64(), sig.LaggingInfo.OtherExchangesCount)
	}

	for _, a := range sig.Actions {
		fmt.Fprintf(&b, "%d. %s\n", a.Step, a.Description)
	}

	var buttons []Button
	if sig.Links.BuyVenueURL != "" {
		buttons = append(buttons, Button{Text: "Buy venue", URL: sig.Links.BuyVenueURL})
	}
	if sig.Links.SellVenueURL != "" {
		buttons = append(buttons, Button{Text: "Sell venue", URL: sig.Links.SellVenueURL})
	}
	if sig.Links.ChartURL != "" {
		buttons = append(buttons, Button{Text: "Chart", URL: sig.Links.ChartURL})
	}

	return Notification{Text: b.String(), Buttons: buttons}
}

// FormatFundingAlert renders a peripheral funding-rate alert (§4.12). These
// carry funding_bps rather than a spread, and are outside the
// strategy_type taxonomy entirely.
func FormatFundingAlert(venueID, symbol string, fundingBps float64) Notification {
	text := fmt.Sprintf("*%s* funding alert — %s\nFunding rate: %.2f bps", symbol, venueID, fundingBps)
	return Notification{Text: text}
}

// Package venue defines the uniform façade over CEX/DEX/perp venue APIs
// (§4.1) and a capability-aware registry (§4.2, §9) that lets the fetcher
// pool skip unsupported operations per venue instead of special-casing
// call sites.
package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
)

// Market describes one tradeable symbol as reported by markets().
type Market struct {
	Symbol string
	Base   string
	Quote  string
	Status string
}

// FundingRate is the funding-rate snapshot for a perpetual symbol.
type FundingRate struct {
	Symbol    string
	RatePct   decimal.Decimal
	NextAt    time.Time
	Timing    domain.Timing
}

// Capability is one operation an adapter may or may not support for a given
// venue registration.
type Capability string

const (
	CapQuotes    Capability = "quotes"
	CapOrderBook Capability = "orderbook"
	CapFunding   Capability = "funding"
	CapShortable Capability = "shortable"
)

// CapabilitySet is the bundle of capabilities a venue registration declares.
type CapabilitySet map[Capability]bool

// Has reports whether c includes cap.
func (c CapabilitySet) Has(cap Capability) bool { return c[cap] }

// Adapter is the uniform façade every venue integration implements.
//
// All price/size fields are decimal.Decimal. OrderBook and FundingRate
// attach request and response timestamps via domain.Timing, and Ticker and
// Tickers stamp each Quote with ReceivedAtMs and LatencyMs; Markets carries
// no timing. Transport, HTTP and decode errors are returned as a
// *venue.Error carrying a transient/permanent classification (see Kind);
// nothing in this module retries on it.
type Adapter interface {
	// Name is the venue_id used throughout the pipeline's keys and maps.
	Name() string
	// Capabilities returns this adapter's declared capability bundle.
	Capabilities() CapabilitySet
	// Markets lists tradeable symbols.
	Markets(ctx context.Context) ([]Market, error)
	// Ticker fetches a single symbol's best bid/ask.
	Ticker(ctx context.Context, symbol string) (domain.Quote, error)
	// Tickers fetches the given symbols, in one request where the venue
	// API supports it. A nil symbols list is not expanded to all known
	// symbols: the kraken adapter rejects it and the others return no
	// quotes.
	Tickers(ctx context.Context, symbols []string) ([]domain.Quote, error)
	// OrderBook fetches up to depth levels per side.
	OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error)
	// FundingRate fetches the current funding rate. Adapters without
	// CapFunding return ErrCapabilityUnsupported.
	FundingRate(ctx context.Context, symbol string) (FundingRate, error)
}

package domain

import (
	"fmt"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/shopspring/decimal"
)

// Side identifies one side of an order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Level is a single price level: a price and the base-asset size resting
// there. Grounded on the sequex pack repo's PriceLevel{Price, Size}.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

func decimalComparator(a, b interface{}) int {
	return a.(decimal.Decimal).Cmp(b.(decimal.Decimal))
}

// Timing captures the wall-clock request/response bracket of a fetch.
type Timing struct {
	RequestAt  time.Time `json:"request_at"`
	ResponseAt time.Time `json:"response_at"`
	LatencyMs  int64     `json:"latency_ms"`
}

// OrderBook is a normalized, decimal-typed snapshot for one venue/symbol.
// Bids are stored strictly descending by price, asks strictly ascending —
// a treemap with a decimal comparator keeps insertion order-independent and
// gives O(log n) best-price lookups, following the sequex pack repo's
// BookArray/treemap approach.
type OrderBook struct {
	VenueID string
	Symbol  string
	bids    *treemap.Map // price -> size, iterated high to low
	asks    *treemap.Map // price -> size, iterated low to high
	Timing  Timing
}

// NewOrderBook builds an OrderBook from raw level slices, validating the
// strictly-descending/ascending and positive-size invariants from §3.
func NewOrderBook(venueID, symbol string, bids, asks []Level, timing Timing) (*OrderBook, error) {
	ob := &OrderBook{
		VenueID: venueID,
		Symbol:  symbol,
		bids:    treemap.NewWith(decimalComparator),
		asks:    treemap.NewWith(decimalComparator),
		Timing:  timing,
	}
	var prevBid *decimal.Decimal
	for _, lvl := range bids {
		if lvl.Size.Sign() <= 0 {
			return nil, fmt.Errorf("orderbook: non-positive bid size at price %s", lvl.Price)
		}
		if prevBid != nil && lvl.Price.GreaterThanOrEqual(*prevBid) {
			return nil, fmt.Errorf("orderbook: bids not strictly descending at %s", lvl.Price)
		}
		p := lvl.Price
		prevBid = &p
		ob.bids.Put(lvl.Price, lvl.Size)
	}
	var prevAsk *decimal.Decimal
	for _, lvl := range asks {
		if lvl.Size.Sign() <= 0 {
			return nil, fmt.Errorf("orderbook: non-positive ask size at price %s", lvl.Price)
		}
		if prevAsk != nil && lvl.Price.LessThanOrEqual(*prevAsk) {
			return nil, fmt.Errorf("orderbook: asks not strictly ascending at %s", lvl.Price)
		}
		p := lvl.Price
		prevAsk = &p
		ob.asks.Put(lvl.Price, lvl.Size)
	}
	return ob, nil
}

// BestBid returns the highest bid level, if any.
func (ob *OrderBook) BestBid() (Level, bool) {
	k, v, ok := ob.bids.Max()
	if !ok {
		return Level{}, false
	}
	return Level{Price: k.(decimal.Decimal), Size: v.(decimal.Decimal)}, true
}

// BestAsk returns the lowest ask level, if any.
func (ob *OrderBook) BestAsk() (Level, bool) {
	k, v, ok := ob.asks.Min()
	if !ok {
		return Level{}, false
	}
	return Level{Price: k.(decimal.Decimal), Size: v.(decimal.Decimal)}, true
}

// Levels returns bid levels best-first (descending) or ask levels
// best-first (ascending), walking the book from the touch outward.
func (ob *OrderBook) Levels(side Side) []Level {
	var tree *treemap.Map
	if side == SideBid {
		tree = ob.bids
	} else {
		tree = ob.asks
	}
	out := make([]Level, 0, tree.Size())
	it := tree.Iterator()
	if side == SideBid {
		for it.End(); it.Prev(); {
			out = append(out, Level{Price: it.Key().(decimal.Decimal), Size: it.Value().(decimal.Decimal)})
		}
	} else {
		for it.Begin(); it.Next(); {
			out = append(out, Level{Price: it.Key().(decimal.Decimal), Size: it.Value().(decimal.Decimal)})
		}
	}
	return out
}

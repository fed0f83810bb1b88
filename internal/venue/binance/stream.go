package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/venue/stream"
)

// bookTickerMessage is Binance's <symbol>@bookTicker payload: the best bid
// and ask, pushed on every top-of-book change. Simpler to decode than the
// @depth diff stream the teacher's exchanges/binance/book.go consumes,
// since it needs no local order-book state to produce a usable Quote.
type bookTickerMessage struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}

// NewStream builds a reference streaming Feed subscribed to symbol's
// bookTicker channel. Feed.Run must be started by the caller; it is not
// started automatically since this path is optional (see package stream's
// doc comment).
func NewStream(symbol string) *stream.Feed {
	url := fmt.Sprintf("wss://stream.binance.com:9443/ws/%s@bookTicker", strings.ToLower(symbol))
	return stream.NewFeed(venueID, url, decodeBookTicker)
}

func decodeBookTicker(raw []byte) (domain.Quote, bool, error) {
	var msg bookTickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Quote{}, false, err
	}
	if msg.Symbol == "" || msg.BidPrice == "" || msg.AskPrice == "" {
		return domain.Quote{}, false, nil
	}
	bid, err := decimal.NewFromString(msg.BidPrice)
	if err != nil {
		return domain.Quote{}, false, err
	}
	ask, err := decimal.NewFromString(msg.AskPrice)
	if err != nil {
		return domain.Quote{}, false, err
	}
	return domain.Quote{Symbol: msg.Symbol, Bid: bid, Ask: ask}, true, nil
}

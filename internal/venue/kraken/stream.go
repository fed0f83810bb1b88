package kraken

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/venue/stream"
)

// tickerPayload is the object Kraken's public ticker channel embeds as the
// second element of its wire array ([channelID, payload, "ticker", pair]),
// grounded on the Subscription/channel shape in the teacher's
// internal/providers/kraken/websocket.go. Ask/Bid are each [price, wholeLot,
// lotVolume] triples; only the price (index 0) is needed for a Quote.
type tickerPayload struct {
	Ask []string `json:"a"`
	Bid []string `json:"b"`
}

// NewStream builds a reference streaming Feed on Kraken's v1 websocket API
// that decodes public ticker frames. Feed is a plain read/decode loop: it
// sends no {"event":"subscribe",...} message, and pair is not used.
func NewStream(pair string) *stream.Feed {
	return stream.NewFeed(venueID, "wss://ws.kraken.com", decodeTickerMessage)
}

// decodeTickerMessage parses one frame of Kraken's [channelID, payload,
// channelName, pair] wire array, ignoring the heartbeat/systemStatus
// object frames that don't match this shape.
func decodeTickerMessage(raw []byte) (domain.Quote, bool, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return domain.Quote{}, false, nil // object frames (heartbeat, status) aren't errors
	}
	if len(frame) != 4 {
		return domain.Quote{}, false, nil
	}

	var channelName, pair string
	if err := json.Unmarshal(frame[2], &channelName); err != nil {
		return domain.Quote{}, false, err
	}
	if channelName != "ticker" {
		return domain.Quote{}, false, nil
	}
	if err := json.Unmarshal(frame[3], &pair); err != nil {
		return domain.Quote{}, false, err
	}

	var payload tickerPayload
	if err := json.Unmarshal(frame[1], &payload); err != nil {
		return domain.Quote{}, false, err
	}
	if len(payload.Bid) == 0 || len(payload.Ask) == 0 {
		return domain.Quote{}, false, fmt.Errorf("kraken ticker frame missing bid/ask for %s", pair)
	}

	bid, err := decimal.NewFromString(payload.Bid[0])
	if err != nil {
		return domain.Quote{}, false, err
	}
	ask, err := decimal.NewFromString(payload.Ask[0])
	if err != nil {
		return domain.Quote{}, false, err
	}
	return domain.Quote{Symbol: pair, Bid: bid, Ask: ask}, true, nil
}

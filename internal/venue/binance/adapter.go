// Package binance is a reference venue.Adapter for Binance's public Spot
// REST API, following the same request/decode shape as venue/kraken but
// against Binance's flat JSON arrays instead of Kraken's pair-keyed maps.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/venue"
)

const venueID = "binance"

// Adapter implements venue.Adapter against Binance's public Spot REST API.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a Binance adapter using httpClient, which is expected to carry
// the shared rate-limit/budget/circuit-breaker RoundTripper chain.
func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{httpClient: httpClient, baseURL: "https://api.binance.com"}
}

func (a *Adapter) Name() string { return venueID }

func (a *Adapter) Capabilities() venue.CapabilitySet {
	return venue.CapabilitySet{
		venue.CapQuotes:    true,
		venue.CapOrderBook: true,
	}
}

func (a *Adapter) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := fmt.Sprintf("%s%s", a.baseURL, path)
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", u, query.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, venue.Permanent(venueID, err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, venue.Transient(venueID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, venue.Transient(venueID, err)
	}
	if resp.StatusCode >= 500 {
		return nil, venue.Transient(venueID, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode >= 400 {
		return nil, venue.Permanent(venueID, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}
	return body, nil
}

func (a *Adapter) Markets(ctx context.Context) ([]venue.Market, error) {
	body, err := a.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	var info struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
			Status     string `json:"status"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode exchangeInfo: %w", err))
	}
	out := make([]venue.Market, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset != "USDT" && s.QuoteAsset != "USD" {
			continue
		}
		out = append(out, venue.Market{
			Symbol: canonicalSymbol(s.BaseAsset),
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
			Status: s.Status,
		})
	}
	return out, nil
}

func (a *Adapter) Ticker(ctx context.Context, symbol string) (domain.Quote, error) {
	requestAt := time.Now()
	q := url.Values{}
	q.Set("symbol", binanceSymbol(symbol))
	body, err := a.get(ctx, "/api/v3/ticker/bookTicker", q)
	responseAt := time.Now()
	if err != nil {
		return domain.Quote{}, err
	}
	var raw struct {
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Quote{}, venue.Permanent(venueID, fmt.Errorf("decode bookTicker: %w", err))
	}
	bid, err1 := decimal.NewFromString(raw.BidPrice)
	ask, err2 := decimal.NewFromString(raw.AskPrice)
	if err1 != nil || err2 != nil {
		return domain.Quote{}, venue.Permanent(venueID, fmt.Errorf("parse bookTicker prices"))
	}
	return domain.Quote{
		VenueID:      venueID,
		Symbol:       symbol,
		Bid:          bid,
		Ask:          ask,
		ReceivedAtMs: responseAt.UnixMilli(),
		LatencyMs:    responseAt.Sub(requestAt).Milliseconds(),
	}, nil
}

func (a *Adapter) Tickers(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	out := make([]domain.Quote, 0, len(symbols))
	for _, s := range symbols {
		q, err := a.Ticker(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (a *Adapter) OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	if depth <= 0 || depth > 5000 {
		depth = 100
	}
	requestAt := time.Now()
	q := url.Values{}
	q.Set("symbol", binanceSymbol(symbol))
	q.Set("limit", fmt.Sprintf("%d", depth))
	body, err := a.get(ctx, "/api/v3/depth", q)
	responseAt := time.Now()
	if err != nil {
		return nil, err
	}
	var raw struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode depth: %w", err))
	}
	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("parse bids: %w", err))
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("parse asks: %w", err))
	}
	return domain.NewOrderBook(venueID, symbol, bids, asks, domain.Timing{
		RequestAt:  requestAt,
		ResponseAt: responseAt,
		LatencyMs:  responseAt.Sub(requestAt).Milliseconds(),
	})
}

func (a *Adapter) FundingRate(ctx context.Context, symbol string) (venue.FundingRate, error) {
	return venue.FundingRate{}, venue.Permanent(venueID, venue.RequireCapability(venueID, a.Capabilities(), venue.CapFunding))
}

func parseLevels(raw [][]string) ([]domain.Level, error) {
	levels := make([]domain.Level, 0, len(raw))
	for _, row := range raw {
		if len(row) < 2 {
			continue
		}
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, err
		}
		size, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.Level{Price: price, Size: size})
	}
	return levels, nil
}

func binanceSymbol(canonical string) string {
	return strings.ToUpper(strings.TrimSuffix(canonical, "-USD")) + "USDT"
}

func canonicalSymbol(base string) string {
	return fmt.Sprintf("%s-USD", strings.ToUpper(base))
}

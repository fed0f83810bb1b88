// Package okx is a reference venue.Adapter for OKX's public perpetual swap
// REST API. Unlike venue/kraken and venue/binance (spot-only), it declares
// CapFunding and CapShortable so the pipeline's PerpDEX/CEXFutures paths and
// the funding-rate alerter (§4.12) have a real adapter to exercise.
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/venue"
)

const venueID = "okx"

// Adapter implements venue.Adapter against OKX's public perpetual swap API.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
}

// New builds an OKX adapter using httpClient, expected to carry the shared
// rate-limit/budget/circuit-breaker RoundTripper chain.
func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{httpClient: httpClient, baseURL: "https://www.okx.com"}
}

func (a *Adapter) Name() string { return venueID }

func (a *Adapter) Capabilities() venue.CapabilitySet {
	return venue.CapabilitySet{
		venue.CapQuotes:    true,
		venue.CapOrderBook: true,
		venue.CapFunding:   true,
		venue.CapShortable: true,
	}
}

type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (a *Adapter) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
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
	var env okxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode envelope: %w", err))
	}
	if env.Code != "0" {
		return nil, venue.Permanent(venueID, fmt.Errorf("okx error %s: %s", env.Code, env.Msg))
	}
	return env.Data, nil
}

func (a *Adapter) Markets(ctx context.Context) ([]venue.Market, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	raw, err := a.get(ctx, "/api/v5/public/instruments", q)
	if err != nil {
		return nil, err
	}
	var instruments []struct {
		InstID   string `json:"instId"`
		BaseCcy  string `json:"ctValCcy"`
		State    string `json:"state"`
	}
	if err := json.Unmarshal(raw, &instruments); err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode instruments: %w", err))
	}
	out := make([]venue.Market, 0, len(instruments))
	for _, i := range instruments {
		if !strings.HasSuffix(i.InstID, "USDT-SWAP") {
			continue
		}
		out = append(out, venue.Market{
			Symbol: canonicalSymbol(i.InstID),
			Base:   i.BaseCcy,
			Quote:  "USDT",
			Status: i.State,
		})
	}
	return out, nil
}

func (a *Adapter) Ticker(ctx context.Context, symbol string) (domain.Quote, error) {
	requestAt := time.Now()
	q := url.Values{}
	q.Set("instId", okxInstID(symbol))
	raw, err := a.get(ctx, "/api/v5/market/ticker", q)
	responseAt := time.Now()
	if err != nil {
		return domain.Quote{}, err
	}
	var rows []struct {
		BidPx string `json:"bidPx"`
		AskPx string `json:"askPx"`
		Last  string `json:"last"`
		Vol24h string `json:"volCcy24h"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		return domain.Quote{}, venue.Permanent(venueID, fmt.Errorf("decode ticker: %w", err))
	}
	row := rows[0]
	bid, err1 := decimal.NewFromString(row.BidPx)
	ask, err2 := decimal.NewFromString(row.AskPx)
	if err1 != nil || err2 != nil {
		return domain.Quote{}, venue.Permanent(venueID, fmt.Errorf("parse ticker prices"))
	}
	q2 := domain.Quote{
		VenueID:      venueID,
		Symbol:       symbol,
		Bid:          bid,
		Ask:          ask,
		ReceivedAtMs: responseAt.UnixMilli(),
		LatencyMs:    responseAt.Sub(requestAt).Milliseconds(),
	}
	if mark, err := decimal.NewFromString(row.Last); err == nil {
		q2.Mark = &mark
	}
	if vol, err := decimal.NewFromString(row.Vol24h); err == nil {
		q2.Volume24h = &vol
	}
	return q2, nil
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
	if depth <= 0 || depth > 400 {
		depth = 50
	}
	requestAt := time.Now()
	q := url.Values{}
	q.Set("instId", okxInstID(symbol))
	q.Set("sz", strconv.Itoa(depth))
	raw, err := a.get(ctx, "/api/v5/market/books", q)
	responseAt := time.Now()
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode books: %w", err))
	}
	bids, err := parseLevels(rows[0].Bids)
	if err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("parse bids: %w", err))
	}
	asks, err := parseLevels(rows[0].Asks)
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
	requestAt := time.Now()
	q := url.Values{}
	q.Set("instId", okxInstID(symbol))
	raw, err := a.get(ctx, "/api/v5/public/funding-rate", q)
	responseAt := time.Now()
	if err != nil {
		return venue.FundingRate{}, err
	}
	var rows []struct {
		FundingRate string `json:"fundingRate"`
		NextFundingTime string `json:"nextFundingTime"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		return venue.FundingRate{}, venue.Permanent(venueID, fmt.Errorf("decode funding-rate: %w", err))
	}
	rate, err := decimal.NewFromString(rows[0].FundingRate)
	if err != nil {
		return venue.FundingRate{}, venue.Permanent(venueID, fmt.Errorf("parse funding rate: %w", err))
	}
	var nextAt time.Time
	if ms, err := strconv.ParseInt(rows[0].NextFundingTime, 10, 64); err == nil {
		nextAt = time.UnixMilli(ms)
	}
	return venue.FundingRate{
		Symbol:  symbol,
		RatePct: rate.Mul(decimal.NewFromInt(100)),
		NextAt:  nextAt,
		Timing: domain.Timing{
			RequestAt:  requestAt,
			ResponseAt: responseAt,
			LatencyMs:  responseAt.Sub(requestAt).Milliseconds(),
		},
	}, nil
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

func okxInstID(canonical string) string {
	return strings.ToUpper(strings.TrimSuffix(canonical, "-USD")) + "-USDT-SWAP"
}

func canonicalSymbol(instID string) string {
	base := strings.TrimSuffix(instID, "-USDT-SWAP")
	return fmt.Sprintf("%s-USD", strings.ToUpper(base))
}

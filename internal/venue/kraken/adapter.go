// Package kraken is a reference venue.Adapter implementation for Kraken's
// public REST API, grounded on the original providers/kraken/client.go
// request shape (endpoint paths, error envelope, USD-pair normalization)
// but rebased onto decimal.Decimal pricing and the shared net/client
// middleware stack instead of a private http.Client and rate limiter.
package kraken

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

const venueID = "kraken"

// Adapter implements venue.Adapter against Kraken's public Spot REST API.
// It declares quotes and orderbook capabilities but not funding (spot-only)
// and not shortable (CEXSpot venues never are, per domain.VenueType).
type Adapter struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a Kraken adapter using httpClient, which is expected to already
// carry the rate-limit/budget/circuit-breaker RoundTripper chain from
// net/client.Manager.
func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{httpClient: httpClient, baseURL: "https://api.kraken.com"}
}

func (a *Adapter) Name() string { return venueID }

func (a *Adapter) Capabilities() venue.CapabilitySet {
	return venue.CapabilitySet{
		venue.CapQuotes:    true,
		venue.CapOrderBook: true,
	}
}

type krakenEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
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
	req.Header.Set("Accept", "application/json")

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

	var env krakenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode envelope: %w", err))
	}
	if len(env.Error) > 0 {
		return nil, venue.Permanent(venueID, fmt.Errorf("kraken error: %v", env.Error))
	}
	return env.Result, nil
}

func (a *Adapter) Markets(ctx context.Context) ([]venue.Market, error) {
	raw, err := a.get(ctx, "/0/public/AssetPairs", nil)
	if err != nil {
		return nil, err
	}
	var pairs map[string]struct {
		Base  string `json:"base"`
		Quote string `json:"quote"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode asset pairs: %w", err))
	}
	out := make([]venue.Market, 0, len(pairs))
	for name, p := range pairs {
		if !isUSDPair(name) {
			continue
		}
		out = append(out, venue.Market{
			Symbol: normalizePairName(name),
			Base:   p.Base,
			Quote:  p.Quote,
			Status: p.Status,
		})
	}
	return out, nil
}

type tickerEntry struct {
	Ask []string `json:"a"`
	Bid []string `json:"b"`
	Vol []string `json:"v"`
}

func (a *Adapter) Ticker(ctx context.Context, symbol string) (domain.Quote, error) {
	qs, err := a.Tickers(ctx, []string{symbol})
	if err != nil {
		return domain.Quote{}, err
	}
	if len(qs) == 0 {
		return domain.Quote{}, venue.Permanent(venueID, fmt.Errorf("no ticker for %s", symbol))
	}
	return qs[0], nil
}

func (a *Adapter) Tickers(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if len(symbols) == 0 {
		return nil, venue.Permanent(venueID, fmt.Errorf("tickers: symbols required"))
	}
	krakenPairs := make([]string, len(symbols))
	for i, s := range symbols {
		krakenPairs[i] = denormalizePairName(s)
	}

	requestAt := time.Now()
	q := url.Values{}
	q.Set("pair", strings.Join(krakenPairs, ","))
	raw, err := a.get(ctx, "/0/public/Ticker", q)
	responseAt := time.Now()
	if err != nil {
		return nil, err
	}

	var entries map[string]tickerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode ticker: %w", err))
	}

	out := make([]domain.Quote, 0, len(entries))
	for pairName, e := range entries {
		if len(e.Ask) < 2 || len(e.Bid) < 2 {
			continue
		}
		ask, err1 := decimal.NewFromString(e.Ask[0])
		bid, err2 := decimal.NewFromString(e.Bid[0])
		if err1 != nil || err2 != nil {
			continue
		}
		var vol *decimal.Decimal
		if len(e.Vol) >= 2 {
			if v, err := decimal.NewFromString(e.Vol[1]); err == nil {
				vol = &v
			}
		}
		out = append(out, domain.Quote{
			VenueID:      venueID,
			Symbol:       normalizePairName(pairName),
			Bid:          bid,
			Ask:          ask,
			Volume24h:    vol,
			ReceivedAtMs: responseAt.UnixMilli(),
			LatencyMs:    responseAt.Sub(requestAt).Milliseconds(),
		})
	}
	return out, nil
}

func (a *Adapter) OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	q := url.Values{}
	q.Set("pair", denormalizePairName(symbol))
	if depth > 0 {
		q.Set("count", strconv.Itoa(depth))
	}

	requestAt := time.Now()
	raw, err := a.get(ctx, "/0/public/Depth", q)
	responseAt := time.Now()
	if err != nil {
		return nil, err
	}

	var books map[string]struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	}
	if err := json.Unmarshal(raw, &books); err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("decode depth: %w", err))
	}

	var book struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	}
	found := false
	for name, b := range books {
		if normalizePairName(name) == normalizePairName(symbol) {
			book, found = b, true
			break
		}
	}
	if !found {
		return nil, venue.Permanent(venueID, fmt.Errorf("order book not found for %s", symbol))
	}

	bids, err := parseLevels(book.Bids)
	if err != nil {
		return nil, venue.Permanent(venueID, fmt.Errorf("parse bids: %w", err))
	}
	asks, err := parseLevels(book.Asks)
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

func isUSDPair(pair string) bool {
	upper := strings.ToUpper(pair)
	return strings.HasSuffix(upper, "USD") || strings.HasSuffix(upper, "ZUSD")
}

// normalizePairName converts Kraken's native pair spelling (e.g. XXBTZUSD)
// to the pipeline's canonical BASE-USD form.
func normalizePairName(pair string) string {
	upper := strings.ToUpper(pair)
	if strings.HasPrefix(upper, "XXBT") {
		upper = strings.Replace(upper, "XXBT", "BTC", 1)
	}
	if strings.HasPrefix(upper, "XETH") {
		upper = strings.Replace(upper, "XETH", "ETH", 1)
	}
	if strings.HasSuffix(upper, "ZUSD") {
		upper = strings.Replace(upper, "ZUSD", "USD", 1)
	}
	if len(upper) >= 6 && strings.HasSuffix(upper, "USD") {
		return fmt.Sprintf("%s-USD", upper[:len(upper)-3])
	}
	return upper
}

// denormalizePairName converts a canonical BASE-USD symbol back to Kraken's
// native pair spelling for request construction.
func denormalizePairName(symbol string) string {
	base := strings.TrimSuffix(symbol, "-USD")
	switch base {
	case "BTC":
		return "XXBTZUSD"
	case "ETH":
		return "XETHZUSD"
	default:
		return base + "USD"
	}
}

package tickerregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
)

func TestUpsert_EnumeratesPairsAndValidates(t *testing.T) {
	r := New()
	r.Upsert(&domain.Ticker{
		Symbol:  "BTC",
		CEXSpot: []domain.VenueRef{{VenueID: "binance", Type: domain.VenueCEXSpot}},
		PerpDEX: []domain.VenueRef{{VenueID: "jupiter", Type: domain.VenuePerpDEX}},
	})

	got, ok := r.Get("BTC")
	require.True(t, ok)
	assert.True(t, got.IsValid)
	assert.Len(t, got.ArbitragePairs, 1)
}

func TestUpsert_InvalidWithoutShortableVenue(t *testing.T) {
	r := New()
	r.Upsert(&domain.Ticker{
		Symbol:  "WIF",
		CEXSpot: []domain.VenueRef{{VenueID: "binance", Type: domain.VenueCEXSpot}},
		DEXSpot: []domain.VenueRef{{VenueID: "raydium", Type: domain.VenueDEXSpot}},
	})

	got, ok := r.Get("WIF")
	require.True(t, ok)
	assert.False(t, got.IsValid)
	assert.Contains(t, got.ValidationErrors, "no shortable venue (cex_futures or perp_dex)")
	assert.Empty(t, got.ArbitragePairs, "neither side is shortable, so no pair is emitted")
}

func TestDiscover_GroupsMarketsBySymbolAcrossVenues(t *testing.T) {
	r := New()
	r.Discover([]MarketsByVenue{
		{VenueID: "binance", Type: domain.VenueCEXSpot, Symbols: []string{"BTC", "ETH"}},
		{VenueID: "binance_futures", Type: domain.VenueCEXFutures, Symbols: []string{"BTC"}},
		{VenueID: "jupiter", Type: domain.VenuePerpDEX, Symbols: []string{"ETH"}},
	})

	btc, ok := r.Get("BTC")
	require.True(t, ok)
	assert.True(t, btc.IsShortable())
	assert.Len(t, btc.CEXSpot, 1)
	assert.Len(t, btc.CEXFutures, 1)

	valid := r.Valid()
	assert.Len(t, valid, 2)
}

package kraken

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTickerMessage_ParsesBidAsk(t *testing.T) {
	raw := []byte(`[340,{"a":["5525.40000","1","1.000"],"b":["5525.10000","1","1.000"]},"ticker","XBT/USD"]`)

	quote, ok, err := decodeTickerMessage(raw)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "XBT/USD", quote.Symbol)
	assert.True(t, quote.Bid.Equal(decimal.RequireFromString("5525.10000")))
	assert.True(t, quote.Ask.Equal(decimal.RequireFromString("5525.40000")))
}

func TestDecodeTickerMessage_IgnoresNonTickerChannel(t *testing.T) {
	raw := []byte(`[340,{"c":["5525.40000","1"]},"trade","XBT/USD"]`)
	_, ok, err := decodeTickerMessage(raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeTickerMessage_IgnoresHeartbeatObjectFrame(t *testing.T) {
	raw := []byte(`{"event":"heartbeat"}`)
	_, ok, err := decodeTickerMessage(raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStream_BuildsFeed(t *testing.T) {
	f := NewStream("XBT/USD")
	assert.NotNil(t, f)
}

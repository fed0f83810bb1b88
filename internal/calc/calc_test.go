package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
)

func mustBook(t *testing.T, bids, asks []domain.Level) *domain.OrderBook {
	t.Helper()
	ob, err := domain.NewOrderBook("test", "BTC-USD", bids, asks, domain.Timing{})
	require.NoError(t, err)
	return ob
}

func lvl(price, size float64) domain.Level {
	return domain.Level{Price: decimal.NewFromFloat(price), Size: decimal.NewFromFloat(size)}
}

func TestExecutablePrice_FullyFilled(t *testing.T) {
	ob := mustBook(t, nil, []domain.Level{lvl(100, 10), lvl(101, 10)})

	fill := ExecutablePrice(ob, domain.SideAsk, decimal.NewFromInt(1500), 1)

	assert.False(t, fill.InsufficientDepth)
	assert.True(t, fill.UnfilledUSD.IsZero())
	assert.True(t, fill.FilledUSD.Equal(decimal.NewFromInt(1500)))
}

func TestExecutablePrice_InsufficientDepth(t *testing.T) {
	ob := mustBook(t, nil, []domain.Level{lvl(100, 1)})

	fill := ExecutablePrice(ob, domain.SideAsk, decimal.NewFromInt(1000), 1)

	assert.True(t, fill.InsufficientDepth)
	assert.True(t, fill.UnfilledUSD.GreaterThan(decimal.Zero))
}

func TestSpread_Emittable(t *testing.T) {
	s := Spread(
		decimal.NewFromInt(100), decimal.NewFromInt(101),
		decimal.NewFromInt(100), decimal.NewFromInt(101),
		decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.1),
	)

	assert.True(t, Emittable(s, decimal.NewFromFloat(0.3), decimal.NewFromInt(15)))
	assert.True(t, s.NetPct.LessThan(s.RealPct))
}

func TestDepthWithinSlippage(t *testing.T) {
	ob := mustBook(t, nil, []domain.Level{lvl(100, 10), lvl(101, 10), lvl(120, 10)})

	depth := DepthWithinSlippage(ob, domain.SideAsk, decimal.NewFromInt(5))

	// Only the first two levels are within 5% of best price (100); 120 is 20% away.
	assert.True(t, depth.Equal(decimal.NewFromInt(1000+1010)))
}

package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a tiny in-memory CooldownStore stand-in for store.Redis,
// sufficient to exercise the gate's SetNX/TTL contract without a broker.
type memStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{expires: make(map[string]time.Time)}
}

func (m *memStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.expires[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	m.expires[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *memStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[key]
	if !ok {
		return 0, nil
	}
	if remaining := time.Until(exp); remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

func TestGate_CooldownExclusivity(t *testing.T) {
	store := newMemStore()
	g := New(store, Blacklist{}, 300*time.Second)
	ctx := context.Background()

	allowed, _, err := g.ProcessAlert(ctx, Candidate{Symbol: "BTC"})
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, reason, err := g.ProcessAlert(ctx, Candidate{Symbol: "BTC"})
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "cooldown")

	allowed, _, err = g.ProcessAlert(ctx, Candidate{Symbol: "ETH"})
	require.NoError(t, err)
	assert.True(t, allowed, "unrelated symbols must not share a cooldown")
}

func TestBlacklist_CaseInsensitivity(t *testing.T) {
	bl := NewBlacklist([]string{"BTC"}, []string{"Binance"}, []string{"0xDEADBEEF"})

	blocked, _ := bl.Blocked(Candidate{Symbol: "btc"})
	assert.True(t, blocked)

	blocked, _ = bl.Blocked(Candidate{Symbol: "ETH", LowVenue: "binance"})
	assert.True(t, blocked)

	blocked, _ = bl.Blocked(Candidate{Symbol: "ETH", Addresses: []string{"0xdeadbeef"}})
	assert.True(t, blocked)

	blocked, _ = bl.Blocked(Candidate{Symbol: "ETH", LowVenue: "kraken"})
	assert.False(t, blocked)
}

func TestGate_BlacklistBlocksBeforeCooldownIsArmed(t *testing.T) {
	store := newMemStore()
	bl := NewBlacklist([]string{"BTC"}, nil, nil)
	g := New(store, bl, 300*time.Second)

	allowed, reason, err := g.ProcessAlert(context.Background(), Candidate{Symbol: "BTC"})
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "blacklisted")

	ttl, err := store.TTL(context.Background(), cooldownKey("BTC"))
	require.NoError(t, err)
	assert.Zero(t, ttl, "a blacklisted symbol must not arm the cooldown")
}

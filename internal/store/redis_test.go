package store

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetNX_CooldownExclusivity(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := New(rdb)
	ctx := context.Background()

	mock.ExpectSetNX("cooldown:btc", "1", 300*time.Second).SetVal(true)
	won, err := s.SetNX(ctx, cooldownKey("BTC"), 300*time.Second)
	require.NoError(t, err)
	assert.True(t, won)

	mock.ExpectSetNX("cooldown:btc", "1", 300*time.Second).SetVal(false)
	won, err = s.SetNX(ctx, cooldownKey("BTC"), 300*time.Second)
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_TTL_AbsentKeyReturnsZero(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := New(rdb)
	ctx := context.Background()

	mock.ExpectTTL("cooldown:eth").SetVal(-2 * time.Second)
	ttl, err := s.TTL(ctx, cooldownKey("ETH"))
	require.NoError(t, err)
	assert.Zero(t, ttl)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ObserveSpreadFirstSeen_FirstCallWins(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := New(rdb)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectSetNX("spread:first_seen:BTC|a|b", now.Unix(), SpreadFirstSeenTTL).SetVal(true)
	got, err := s.ObserveSpreadFirstSeen(ctx, "BTC|a|b", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AddAndLoadBlacklist_CaseNormalized(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := New(rdb)
	ctx := context.Background()

	mock.ExpectSAdd("blacklist:symbols", "btc").SetVal(1)
	require.NoError(t, s.AddBlacklistedSymbols(ctx, "BTC"))

	mock.ExpectSMembers("blacklist:symbols").SetVal([]string{"btc"})
	mock.ExpectSMembers("blacklist:exchanges").SetVal([]string{})
	mock.ExpectSMembers("blacklist:addresses").SetVal([]string{})
	symbols, exchanges, addresses, err := s.LoadBlacklist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"btc"}, symbols)
	assert.Empty(t, exchanges)
	assert.Empty(t, addresses)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SettingsGet_MissingKeyNotFound(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := New(rdb)
	ctx := context.Background()

	mock.ExpectHGet("settings:config", "min_spread_pct").RedisNil()
	_, found, err := s.Get(ctx, "min_spread_pct")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

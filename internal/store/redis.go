package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbiq/scanner/internal/domain"
)

// Store wraps a go-redis client with the key formats named in §6. It
// satisfies gate.CooldownStore and config.SettingsStore directly so the
// orchestrator's wiring point (§9) can hand one value to both.
type Store struct {
	rdb *redis.Client
}

// New wraps an existing *redis.Client. Connection options (address, pool
// size, TLS) are the caller's concern — this package owns key formats and
// TTLs only.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping verifies connectivity, used by the CLI's health subcommand (§2.1).
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// --- prices:latest / spreads:latest (tick-scoped, no TTL: overwritten every tick) ---

// WritePricesLatest replaces the full prices:latest snapshot. quotes is
// keyed "venue_id:base_symbol" per §6.
func (s *Store) WritePricesLatest(ctx context.Context, quotes map[string]domain.Quote) error {
	payload, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("store: marshal prices:latest: %w", err)
	}
	return s.rdb.Set(ctx, pricesLatestKey(), payload, 0).Err()
}

// ReadPricesLatest returns the current prices:latest snapshot.
func (s *Store) ReadPricesLatest(ctx context.Context) (map[string]domain.Quote, error) {
	payload, err := s.rdb.Get(ctx, pricesLatestKey()).Bytes()
	if err == redis.Nil {
		return map[string]domain.Quote{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read prices:latest: %w", err)
	}
	out := map[string]domain.Quote{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("store: unmarshal prices:latest: %w", err)
	}
	return out, nil
}

// RankedSpread is one row of the spreads:latest ranked array.
type RankedSpread struct {
	PairID    string  `json:"pair_id"`
	Symbol    string  `json:"symbol"`
	SpreadPct float64 `json:"spread_pct"`
}

// WriteSpreadsLatest replaces the spreads:latest ranked array.
func (s *Store) WriteSpreadsLatest(ctx context.Context, ranked []RankedSpread) error {
	payload, err := json.Marshal(ranked)
	if err != nil {
		return fmt.Errorf("store: marshal spreads:latest: %w", err)
	}
	return s.rdb.Set(ctx, spreadsLatestKey(), payload, 0).Err()
}

// --- spread:first_seen:{pair_id} (TTL 172800) ---

// ObserveSpreadFirstSeen records now as a pair's spread's first-seen time
// if it isn't already tracked, and returns the first-seen time either way —
// the building block for the Spread-Age Tracker's persistence across
// process restarts.
func (s *Store) ObserveSpreadFirstSeen(ctx context.Context, pairID string, now time.Time) (time.Time, error) {
	key := spreadFirstSeenKey(pairID)
	ok, err := s.rdb.SetNX(ctx, key, now.Unix(), SpreadFirstSeenTTL).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("store: setnx %s: %w", key, err)
	}
	if ok {
		return now, nil
	}
	raw, err := s.rdb.Get(ctx, key).Int64()
	if err != nil {
		return time.Time{}, fmt.Errorf("store: get %s: %w", key, err)
	}
	return time.Unix(raw, 0), nil
}

// ClearSpreadFirstSeen removes a pair's first-seen marker once its spread
// has closed below the tracking threshold (§4.5).
func (s *Store) ClearSpreadFirstSeen(ctx context.Context, pairID string) error {
	return s.rdb.Del(ctx, spreadFirstSeenKey(pairID)).Err()
}

// --- depth_history:{pair_id}:{venue_id}:{side} (TTL 86400) ---

// RecordDepthSample appends a USD depth sample to a pair/venue/side's
// bounded history, capping it at maxSamples via RPush+LTrim, and refreshes
// the TTL.
func (s *Store) RecordDepthSample(ctx context.Context, pairID, venueID, side string, usd float64, maxSamples int64) error {
	key := depthHistoryKey(pairID, venueID, side)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, strconv.FormatFloat(usd, 'f', -1, 64))
	pipe.LTrim(ctx, key, -maxSamples, -1)
	pipe.Expire(ctx, key, DepthHistoryTTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: record depth sample %s: %w", key, err)
	}
	return nil
}

// DepthHistory returns the full bounded sample list for a pair/venue/side.
func (s *Store) DepthHistory(ctx context.Context, pairID, venueID, side string) ([]float64, error) {
	key := depthHistoryKey(pairID, venueID, side)
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: read depth history %s: %w", key, err)
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// --- cooldown:{symbol} (TTL = configured) — satisfies gate.CooldownStore ---

// SetNX sets key with ttl only if absent, returning whether this call won.
func (s *Store) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store: setnx %s: %w", key, err)
	}
	return ok, nil
}

// TTL returns the remaining TTL for key, or zero if absent/expired.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store: ttl %s: %w", key, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// --- blacklist:{symbols|exchanges|addresses} (sets) ---

func (s *Store) addToBlacklist(ctx context.Context, dimension string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	normalized := make([]interface{}, len(members))
	for i, m := range members {
		normalized[i] = strings.ToLower(m)
	}
	return s.rdb.SAdd(ctx, blacklistKey(dimension), normalized...).Err()
}

// AddBlacklistedSymbols adds symbols to the symbols blacklist dimension.
func (s *Store) AddBlacklistedSymbols(ctx context.Context, symbols ...string) error {
	return s.addToBlacklist(ctx, blacklistDimensionSymbols, symbols...)
}

// AddBlacklistedExchanges adds venue ids to the exchanges blacklist dimension.
func (s *Store) AddBlacklistedExchanges(ctx context.Context, exchanges ...string) error {
	return s.addToBlacklist(ctx, blacklistDimensionExchanges, exchanges...)
}

// AddBlacklistedAddresses adds contract addresses to the addresses blacklist dimension.
func (s *Store) AddBlacklistedAddresses(ctx context.Context, addresses ...string) error {
	return s.addToBlacklist(ctx, blacklistDimensionAddresses, addresses...)
}

// LoadBlacklist reads all three dimensions into a gate.Blacklist-shaped
// triple of slices; kept generic here (no gate import) to avoid a cycle.
func (s *Store) LoadBlacklist(ctx context.Context) (symbols, exchanges, addresses []string, err error) {
	symbols, err = s.rdb.SMembers(ctx, blacklistKey(blacklistDimensionSymbols)).Result()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: load symbol blacklist: %w", err)
	}
	exchanges, err = s.rdb.SMembers(ctx, blacklistKey(blacklistDimensionExchanges)).Result()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: load exchange blacklist: %w", err)
	}
	addresses, err = s.rdb.SMembers(ctx, blacklistKey(blacklistDimensionAddresses)).Result()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: load address blacklist: %w", err)
	}
	return symbols, exchanges, addresses, nil
}

// --- settings:config (hash) — satisfies config.SettingsStore ---

// Get reads one field from the settings:config hash.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.HGet(ctx, settingsConfigKey(), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: hget settings:config %s: %w", key, err)
	}
	return val, true, nil
}

// SetSetting writes one runtime override into settings:config, taking
// effect on the settings store's next LoadSettings call.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.rdb.HSet(ctx, settingsConfigKey(), key, value).Err()
}

// Package store implements the Redis-backed KV surface named in §6: price
// and spread snapshots, spread-age/depth-history tracking keys, the
// cooldown gate, blacklists, and the runtime settings override hash. Key
// builders live here exclusively so the literal formats are never
// duplicated at call sites.
package store

import (
	"fmt"
	"strings"
	"time"
)

const (
	// SpreadFirstSeenTTL is the §6 TTL for spread:first_seen:{pair_id}.
	SpreadFirstSeenTTL = 172800 * time.Second
	// DepthHistoryTTL is the §6 TTL for depth_history:{pair_id}:{venue_id}:{side}.
	DepthHistoryTTL = 86400 * time.Second
)

func pricesLatestKey() string { return "prices:latest" }

func spreadsLatestKey() string { return "spreads:latest" }

func spreadFirstSeenKey(pairID string) string {
	return fmt.Sprintf("spread:first_seen:%s", pairID)
}

func depthHistoryKey(pairID, venueID, side string) string {
	return fmt.Sprintf("depth_history:%s:%s:%s", pairID, venueID, strings.ToLower(side))
}

func cooldownKey(symbol string) string {
	return fmt.Sprintf("cooldown:%s", strings.ToLower(symbol))
}

func blacklistKey(dimension string) string {
	return fmt.Sprintf("blacklist:%s", dimension)
}

func settingsConfigKey() string { return "settings:config" }

const (
	blacklistDimensionSymbols   = "symbols"
	blacklistDimensionExchanges = "exchanges"
	blacklistDimensionAddresses = "addresses"
)

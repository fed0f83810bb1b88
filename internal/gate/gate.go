// Package gate implements the Cooldown & Blacklist Gate (§4.9): the last
// suppression step before a validated signal is persisted and emitted.
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CooldownStore is the narrow KV contract the gate needs from the Redis
// store (internal/store), kept separate so this package never imports
// internal/store directly.
type CooldownStore interface {
	// SetNX sets key with the given TTL only if it doesn't already exist,
	// returning true if this call won the race and set it.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining time-to-live for key, or zero if absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Blacklist holds the three suppression dimensions from §4.9. All
// comparisons are case-insensitive; entries are normalized to lowercase on
// construction.
type Blacklist struct {
	Symbols   map[string]struct{}
	Exchanges map[string]struct{}
	Addresses map[string]struct{}
}

// NewBlacklist builds a Blacklist from raw (mixed-case) entry lists.
func NewBlacklist(symbols, exchanges, addresses []string) Blacklist {
	return Blacklist{
		Symbols:   toSet(symbols),
		Exchanges: toSet(exchanges),
		Addresses: toSet(addresses),
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = struct{}{}
	}
	return set
}

func (b Blacklist) hasSymbol(s string) bool {
	_, ok := b.Symbols[strings.ToLower(s)]
	return ok
}

func (b Blacklist) hasExchange(s string) bool {
	_, ok := b.Exchanges[strings.ToLower(s)]
	return ok
}

func (b Blacklist) hasAddress(s string) bool {
	_, ok := b.Addresses[strings.ToLower(s)]
	return ok
}

// Candidate is the minimal view of a signal the gate needs to evaluate
// blacklist membership, independent of domain.ValidatedSignal so this
// package stays decoupled from the signal builder.
type Candidate struct {
	Symbol      string
	LowVenue    string
	HighVenue   string
	Addresses   []string // any on-chain contract addresses referenced by either leg
}

// Blocked reports whether any dimension of c is blacklisted, and which
// dimension matched first.
func (b Blacklist) Blocked(c Candidate) (bool, string) {
	if b.hasSymbol(c.Symbol) {
		return true, fmt.Sprintf("symbol %q is blacklisted", c.Symbol)
	}
	if b.hasExchange(c.LowVenue) {
		return true, fmt.Sprintf("exchange %q is blacklisted", c.LowVenue)
	}
	if b.hasExchange(c.HighVenue) {
		return true, fmt.Sprintf("exchange %q is blacklisted", c.HighVenue)
	}
	for _, addr := range c.Addresses {
		if b.hasAddress(addr) {
			return true, fmt.Sprintf("address %q is blacklisted", addr)
		}
	}
	return false, ""
}

// Gate combines the cooldown TTL store and the blacklist into the single
// decision point §4.9 describes: a signal may be emitted only if it is not
// blacklisted and its symbol's cooldown has elapsed.
type Gate struct {
	store     CooldownStore
	blacklist Blacklist
	cooldown  time.Duration
}

// New builds a Gate. cooldown is alert_cooldown_seconds from Settings (§6).
func New(store CooldownStore, blacklist Blacklist, cooldown time.Duration) *Gate {
	return &Gate{store: store, blacklist: blacklist, cooldown: cooldown}
}

func cooldownKey(symbol string) string {
	return fmt.Sprintf("cooldown:%s", strings.ToLower(symbol))
}

// CanAlert reports whether symbol's cooldown has elapsed, without mutating
// state. Useful for read-only dashboards/metrics.
func (g *Gate) CanAlert(ctx context.Context, symbol string) (bool, error) {
	ttl, err := g.store.TTL(ctx, cooldownKey(symbol))
	if err != nil {
		return false, err
	}
	return ttl <= 0, nil
}

// ProcessAlert atomically tests-and-sets the cooldown key and evaluates the
// blacklist for c. It returns (allowed=true) only when the signal is
// neither blacklisted nor currently cooling down, and in that case the
// cooldown has already been armed for the next alert_cooldown_seconds.
func (g *Gate) ProcessAlert(ctx context.Context, c Candidate) (allowed bool, reason string, err error) {
	if blocked, why := g.blacklist.Blocked(c); blocked {
		return false, why, nil
	}

	won, err := g.store.SetNX(ctx, cooldownKey(c.Symbol), g.cooldown)
	if err != nil {
		return false, "", err
	}
	if !won {
		return false, fmt.Sprintf("symbol %q is within its cooldown window", c.Symbol), nil
	}
	return true, "", nil
}

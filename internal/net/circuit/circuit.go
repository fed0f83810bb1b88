// Package circuit wraps github.com/sony/gobreaker per provider, replacing
// a hand-rolled state machine with the library the module already depends
// on (grounded on infra/breakers/breakers.go's single call site, promoted
// here to the primary implementation per §2.2).
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when gobreaker short-circuits a call.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Config mirrors the tuning knobs used by the original breaker so existing
// per-provider settings translate directly onto gobreaker.Settings.
type Config struct {
	// ConsecutiveFailures opens the circuit once this many calls in a row
	// have failed.
	ConsecutiveFailures uint32
	// FailureRatio opens the circuit when TotalFailures/Requests exceeds
	// this ratio, once at least MinRequests have been observed.
	FailureRatio float64
	MinRequests  uint32
	// OpenTimeout is how long the breaker stays open before probing with a
	// half-open trial request.
	OpenTimeout time.Duration
	// Interval is how often the closed-state counters reset to zero.
	Interval time.Duration
}

// DefaultConfig matches infra/breakers/breakers.go's tuning: trip after 3
// consecutive failures, or over 5% failures with at least 20 requests.
func DefaultConfig() Config {
	return Config{
		ConsecutiveFailures: 3,
		FailureRatio:        0.05,
		MinRequests:         20,
		OpenTimeout:         60 * time.Second,
		Interval:            60 * time.Second,
	}
}

// Breaker guards calls to a single provider/venue.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker builds a breaker named name with the given tuning.
func NewBreaker(name string, cfg Config) *Breaker {
	st := gobreaker.Settings{
		Name:     name,
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > cfg.FailureRatio
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(st)}
}

// Call executes fn through the breaker. ctx is honored by fn itself; the
// breaker does not impose its own timeout (that is the caller's transport's
// job, per §5's "every outbound HTTP call has a connect+read timeout").
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// State returns the current gobreaker state name.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// IsOpen reports whether err originated from an open circuit.
func IsOpen(err error) bool { return errors.Is(err, gobreaker.ErrOpenState) }

// Manager keeps one Breaker per venue/provider.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      Config
}

// NewManager creates a manager that lazily builds breakers using cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{breakers: make(map[string]*Breaker), cfg: cfg}
}

// For returns (creating if needed) the breaker for provider.
func (m *Manager) For(provider string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[provider]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[provider]; ok {
		return b
	}
	b = NewBreaker(provider, m.cfg)
	m.breakers[provider] = b
	return b
}

// Call runs fn through the named provider's breaker.
func (m *Manager) Call(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	return m.For(provider).Call(ctx, fn)
}

// Package client wraps http.RoundTripper with the per-venue rate limit,
// budget and circuit-breaker middleware chain (§4.1, §4.3, §5), grounded on
// the original internal/net/client/wrap.go composition but rebased onto the
// gobreaker-backed circuit package and this module's own config shape.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arbiq/scanner/internal/net/budget"
	"github.com/arbiq/scanner/internal/net/circuit"
	"github.com/arbiq/scanner/internal/net/ratelimit"
)

// WrapperConfig configures one provider's middleware stack.
type WrapperConfig struct {
	Provider       string
	Host           string
	RateLimiter    *ratelimit.Limiter
	CircuitBreaker *circuit.Breaker
	BudgetTracker  *budget.Tracker
}

// Wrapper chains a budget check, rate limiting and circuit breaking around
// an inner http.RoundTripper, in that order — rate limiting paces requests
// before the breaker ever sees them, and the budget is consumed inside the
// breaker call, just before the request is sent.
type Wrapper struct {
	config    WrapperConfig
	transport http.RoundTripper
	userAgent string
}

// NewWrapper builds a Wrapper over transport (http.DefaultTransport if nil).
func NewWrapper(config WrapperConfig, transport http.RoundTripper) *Wrapper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Wrapper{config: config, transport: transport, userAgent: "arbiq-scanner/1.0"}
}

// RoundTrip implements http.RoundTripper with the full middleware stack.
func (w *Wrapper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	if w.config.BudgetTracker != nil {
		if err := w.config.BudgetTracker.Allow(); err != nil {
			if _, exhausted := err.(*budget.BudgetExhaustedError); exhausted {
				return nil, &ProviderError{Provider: w.config.Provider, Type: "budget", Err: err}
			}
		}
	}

	if w.config.RateLimiter != nil {
		if err := w.config.RateLimiter.Wait(req.Context(), w.config.Host); err != nil {
			return nil, &ProviderError{Provider: w.config.Provider, Type: "rate_limit", Err: fmt.Errorf("rate limit wait failed: %w", err)}
		}
	}

	var response *http.Response

	execute := func(ctx context.Context) error {
		if w.config.BudgetTracker != nil {
			if err := w.config.BudgetTracker.Consume(); err != nil {
				if _, exhausted := err.(*budget.BudgetExhaustedError); exhausted {
					return &ProviderError{Provider: w.config.Provider, Type: "budget", Err: err}
				}
			}
		}

		resp, err := w.transport.RoundTrip(req.WithContext(ctx))
		if err != nil {
			return &ProviderError{Provider: w.config.Provider, Type: "transport", Err: err}
		}
		if resp.StatusCode >= 400 {
			response = resp
			return &ProviderError{Provider: w.config.Provider, Type: "http_error", StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d error", resp.StatusCode)}
		}
		response = resp
		return nil
	}

	var err error
	if w.config.CircuitBreaker != nil {
		err = w.config.CircuitBreaker.Call(req.Context(), execute)
		if circuit.IsOpen(err) {
			err = &ProviderError{Provider: w.config.Provider, Type: "circuit", Err: err}
		}
	} else {
		err = execute(req.Context())
	}
	if err != nil {
		return nil, err
	}
	return response, nil
}

// ProviderError carries the middleware stage that rejected a request.
type ProviderError struct {
	Provider   string
	Type       string // "rate_limit", "budget", "circuit", "transport", "http_error"
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s %s error (HTTP %d): %v", e.Provider, e.Type, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s error: %v", e.Provider, e.Type, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) IsRateLimited() bool     { return e.Type == "rate_limit" }
func (e *ProviderError) IsBudgetExhausted() bool { return e.Type == "budget" }
func (e *ProviderError) IsCircuitOpen() bool      { return e.Type == "circuit" }

// Manager builds and retains one wrapped *http.Client per venue/provider.
type Manager struct {
	clients      map[string]*http.Client
	rateLimitMgr *ratelimit.Manager
	circuitMgr   *circuit.Manager
	budgetMgr    *budget.Manager
}

// NewManager wires the three middleware managers together.
func NewManager(rateLimitMgr *ratelimit.Manager, circuitMgr *circuit.Manager, budgetMgr *budget.Manager) *Manager {
	return &Manager{
		clients:      make(map[string]*http.Client),
		rateLimitMgr: rateLimitMgr,
		circuitMgr:   circuitMgr,
		budgetMgr:    budgetMgr,
	}
}

// AddProvider builds and stores the wrapped client for name/host.
func (m *Manager) AddProvider(name, host string, requestTimeout time.Duration) {
	rateLimiter, _ := m.rateLimitMgr.GetLimiter(name)
	breaker := m.circuitMgr.For(name)
	budgetTracker, _ := m.budgetMgr.GetTracker(name)

	wrapper := NewWrapper(WrapperConfig{
		Provider:       name,
		Host:           host,
		RateLimiter:    rateLimiter,
		CircuitBreaker: breaker,
		BudgetTracker:  budgetTracker,
	}, http.DefaultTransport)

	m.clients[name] = &http.Client{Transport: wrapper, Timeout: requestTimeout}
}

// GetClient returns the wrapped client for provider, if configured.
func (m *Manager) GetClient(provider string) (*http.Client, bool) {
	c, ok := m.clients[provider]
	return c, ok
}

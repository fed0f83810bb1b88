package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arbiq/scanner/internal/domain"
)

// VenuesConfig is the static per-venue operations configuration: rate
// limits, daily budgets, backoff, and circuit-breaker tuning for every
// registered venue.Adapter (§4.1, §4.3, §5).
type VenuesConfig struct {
	Venues map[string]VenueConfig `yaml:"venues"`
	Budget BudgetConfig           `yaml:"budget"`
	Global GlobalConfig           `yaml:"global"`
}

// VenueConfig configures one venue's transport and pacing.
type VenueConfig struct {
	Host        string           `yaml:"host"`
	Type        domain.VenueType `yaml:"type"` // cex_spot, cex_futures, dex_spot, perp_dex (§4.2 ticker discovery)
	RPS         int              `yaml:"rps"`          // requests per second
	Burst       int              `yaml:"burst"`        // token bucket burst capacity
	DailyBudget int              `yaml:"daily_budget"` // max requests per UTC day
	BackoffMS   BackoffConfig    `yaml:"backoff_ms"`
	Circuit     CircuitConfig    `yaml:"circuit"`
	Enabled     bool             `yaml:"enabled"`
	BaseURL     string           `yaml:"base_url"`
}

// BackoffConfig is a venue's backoff_ms block: base/max in milliseconds and
// a jitter flag. Validate checks it and GetBaseBackoff/GetMaxBackoff expose
// it, but no code in this module retries a request with it.
type BackoffConfig struct {
	Base   int  `yaml:"base"` // base backoff in milliseconds
	Max    int  `yaml:"max"`  // maximum backoff in milliseconds
	Jitter bool `yaml:"jitter"`
}

// CircuitConfig is a venue's `circuit` block. Its fields do not map onto
// circuit.Config: every venue's breaker is built from circuit.DefaultConfig(),
// FailureThreshold and SuccessThreshold are only validated, and TimeoutMS is
// used as the per-request HTTP timeout (see GetRequestTimeout).
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	SuccessThreshold int `yaml:"success_threshold"`
	TimeoutMS        int `yaml:"timeout_ms"`
}

// BudgetConfig governs the shared daily-budget warning behavior across
// every venue tracker.
type BudgetConfig struct {
	WarnThreshold float64 `yaml:"warn_threshold"` // warn at this fraction of daily budget
	ResetHour     int     `yaml:"reset_hour"`     // UTC hour to reset budgets (0-23)
}

// GlobalConfig holds cross-venue transport defaults.
type GlobalConfig struct {
	MaxParallelVenues int    `yaml:"max_parallel_venues"` // bounds total fetch concurrency (§5), default 16
	UserAgent         string `yaml:"user_agent"`
}

// LoadVenuesConfig loads venue configuration from a YAML file.
func LoadVenuesConfig(configPath string) (*VenuesConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read venues config: %w", err)
	}

	var cfg VenuesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse venues config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid venues config: %w", err)
	}
	return &cfg, nil
}

// Validate ensures the configuration is internally consistent.
func (c *VenuesConfig) Validate() error {
	if c.Budget.WarnThreshold <= 0 || c.Budget.WarnThreshold > 1 {
		return fmt.Errorf("budget warn_threshold must be between 0 and 1, got %f", c.Budget.WarnThreshold)
	}
	if c.Budget.ResetHour < 0 || c.Budget.ResetHour > 23 {
		return fmt.Errorf("budget reset_hour must be between 0 and 23, got %d", c.Budget.ResetHour)
	}
	if c.Global.MaxParallelVenues <= 0 {
		return fmt.Errorf("global max_parallel_venues must be positive, got %d", c.Global.MaxParallelVenues)
	}
	if c.Global.UserAgent == "" {
		return fmt.Errorf("global user_agent cannot be empty")
	}
	for name, venue := range c.Venues {
		if err := venue.Validate(name); err != nil {
			return fmt.Errorf("venue %s: %w", name, err)
		}
	}
	return nil
}

// Validate ensures a single venue's configuration is usable.
func (v *VenueConfig) Validate(name string) error {
	if v.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if v.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %d", v.RPS)
	}
	if v.Burst < v.RPS {
		return fmt.Errorf("burst (%d) must be >= rps (%d)", v.Burst, v.RPS)
	}
	if v.DailyBudget <= 0 {
		return fmt.Errorf("daily_budget must be positive, got %d", v.DailyBudget)
	}
	if v.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if err := v.BackoffMS.Validate(); err != nil {
		return fmt.Errorf("backoff_ms: %w", err)
	}
	if err := v.Circuit.Validate(); err != nil {
		return fmt.Errorf("circuit: %w", err)
	}
	return nil
}

// Validate ensures the backoff schedule is monotonic.
func (b *BackoffConfig) Validate() error {
	if b.Base <= 0 {
		return fmt.Errorf("base must be positive, got %d", b.Base)
	}
	if b.Max <= b.Base {
		return fmt.Errorf("max (%d) must be > base (%d)", b.Max, b.Base)
	}
	return nil
}

// Validate ensures the circuit tuning is usable.
func (c *CircuitConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("success_threshold must be positive, got %d", c.SuccessThreshold)
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMS)
	}
	return nil
}

// GetRequestTimeout returns the per-request HTTP timeout, taken from the
// venue's circuit.timeout_ms. No default is applied: Validate rejects a
// missing or non-positive timeout_ms.
func (v *VenueConfig) GetRequestTimeout() time.Duration {
	return time.Duration(v.Circuit.TimeoutMS) * time.Millisecond
}

// GetBaseBackoff returns the base backoff as a time.Duration.
func (v *VenueConfig) GetBaseBackoff() time.Duration {
	return time.Duration(v.BackoffMS.Base) * time.Millisecond
}

// GetMaxBackoff returns the maximum backoff as a time.Duration.
func (v *VenueConfig) GetMaxBackoff() time.Duration {
	return time.Duration(v.BackoffMS.Max) * time.Millisecond
}

// GetVenue returns configuration for a specific venue.
func (c *VenuesConfig) GetVenue(name string) (*VenueConfig, bool) {
	cfg, exists := c.Venues[name]
	return &cfg, exists
}

// IsVenueEnabled reports whether a venue is enabled.
func (c *VenuesConfig) IsVenueEnabled(name string) bool {
	if cfg, exists := c.Venues[name]; exists {
		return cfg.Enabled
	}
	return false
}

package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the runtime-tunable configuration named in §6: decimal
// thresholds consumed by the Calculators (§4.4) and Safety Validator
// (§4.6), plus integer knobs for exit liquidity, position sizing, spread
// age, latency, history depth, and alert cooldown.
//
// All decimal fields are float64 here rather than decimal.Decimal — these
// are operator-tunable thresholds compared against computed decimals at
// the call site, not accumulated or chained arithmetic, so the precision
// guarantees decimal.Decimal exists for don't apply.
type Settings struct {
	MinSpreadPct           float64 `yaml:"min_spread_pct"`
	MaxSpreadPct           float64 `yaml:"max_spread_pct"`
	MaxSlippagePct         float64 `yaml:"max_slippage_pct"`
	MaxBidAskSpreadPct     float64 `yaml:"max_bid_ask_spread_pct"`
	MinDepthVsHistoryRatio float64 `yaml:"min_depth_vs_history_ratio"`
	WarningDepthRatio      float64 `yaml:"warning_depth_ratio"`
	MaxPositionToExitRatio float64 `yaml:"max_position_to_exit_ratio"`

	MinExitLiquidityUSD  int `yaml:"min_exit_liquidity_usd"`
	SuggestedPositionUSD int `yaml:"suggested_position_usd"`
	MaxSpreadAgeHours    int `yaml:"max_spread_age_hours"`
	MaxLatencyMs         int `yaml:"max_latency_ms"`
	MinHistorySamples    int `yaml:"min_history_samples"`
	AlertCooldownSeconds int `yaml:"alert_cooldown_seconds"`
}

// requiredSettingKeys must resolve to a value (from any precedence tier)
// before the process may start (§6: "Required keys must be present at
// startup or the process refuses to start").
var requiredSettingKeys = []string{
	"min_spread_pct", "max_spread_pct", "max_slippage_pct",
	"max_bid_ask_spread_pct", "min_depth_vs_history_ratio",
	"max_position_to_exit_ratio", "min_exit_liquidity_usd",
	"max_spread_age_hours", "max_latency_ms", "alert_cooldown_seconds",
}

// SettingsStore is the subset of the Redis-backed settings:config hash
// (§6) that config needs — kept as a narrow interface here so this
// package never imports internal/store directly.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// LoadSettings resolves Settings with precedence runtime store > OS
// environment (ARBIQ_<KEY> uppercased) > static YAML file, per §6.
func LoadSettings(ctx context.Context, staticPath string, runtime SettingsStore) (*Settings, error) {
	raw := map[string]string{}

	if staticPath != "" {
		data, err := os.ReadFile(staticPath)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		var fileValues map[string]interface{}
		if err := yaml.Unmarshal(data, &fileValues); err != nil {
			return nil, fmt.Errorf("parse settings file: %w", err)
		}
		for k, v := range fileValues {
			raw[k] = fmt.Sprintf("%v", v)
		}
	}

	for _, key := range allSettingKeys() {
		envKey := "ARBIQ_" + strings.ToUpper(key)
		if v, ok := os.LookupEnv(envKey); ok {
			raw[key] = v
		}
	}

	if runtime != nil {
		for _, key := range allSettingKeys() {
			if v, ok, err := runtime.Get(ctx, key); err != nil {
				return nil, fmt.Errorf("read runtime setting %s: %w", key, err)
			} else if ok {
				raw[key] = v
			}
		}
	}

	for _, key := range requiredSettingKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("required setting %q is not set in runtime store, environment, or static file", key)
		}
	}

	return settingsFromRaw(raw)
}

func allSettingKeys() []string {
	return []string{
		"min_spread_pct", "max_spread_pct", "max_slippage_pct",
		"max_bid_ask_spread_pct", "min_depth_vs_history_ratio",
		"warning_depth_ratio", "max_position_to_exit_ratio",
		"min_exit_liquidity_usd", "suggested_position_usd",
		"max_spread_age_hours", "max_latency_ms",
		"min_history_samples", "alert_cooldown_seconds",
	}
}

func settingsFromRaw(raw map[string]string) (*Settings, error) {
	s := &Settings{}
	var err error
	if s.MinSpreadPct, err = floatOrZero(raw, "min_spread_pct"); err != nil {
		return nil, err
	}
	if s.MaxSpreadPct, err = floatOrZero(raw, "max_spread_pct"); err != nil {
		return nil, err
	}
	if s.MaxSlippagePct, err = floatOrZero(raw, "max_slippage_pct"); err != nil {
		return nil, err
	}
	if s.MaxBidAskSpreadPct, err = floatOrZero(raw, "max_bid_ask_spread_pct"); err != nil {
		return nil, err
	}
	if s.MinDepthVsHistoryRatio, err = floatOrZero(raw, "min_depth_vs_history_ratio"); err != nil {
		return nil, err
	}
	if s.WarningDepthRatio, err = floatOrZero(raw, "warning_depth_ratio"); err != nil {
		return nil, err
	}
	if s.MaxPositionToExitRatio, err = floatOrZero(raw, "max_position_to_exit_ratio"); err != nil {
		return nil, err
	}
	if s.MinExitLiquidityUSD, err = intOrZero(raw, "min_exit_liquidity_usd"); err != nil {
		return nil, err
	}
	if s.SuggestedPositionUSD, err = intOrZero(raw, "suggested_position_usd"); err != nil {
		return nil, err
	}
	if s.MaxSpreadAgeHours, err = intOrZero(raw, "max_spread_age_hours"); err != nil {
		return nil, err
	}
	if s.MaxLatencyMs, err = intOrZero(raw, "max_latency_ms"); err != nil {
		return nil, err
	}
	if s.MinHistorySamples, err = intOrZero(raw, "min_history_samples"); err != nil {
		return nil, err
	}
	if s.AlertCooldownSeconds, err = intOrZero(raw, "alert_cooldown_seconds"); err != nil {
		return nil, err
	}
	return s, nil
}

func floatOrZero(raw map[string]string, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return f, nil
}

func intOrZero(raw map[string]string, key string) (int, error) {
	v, ok := raw[key]
	if !ok {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return i, nil
}

// DefaultSettings returns conservative fallback values suitable for a
// static settings file's baseline — operators override via environment or
// the runtime store as described in §6.
func DefaultSettings() *Settings {
	return &Settings{
		MinSpreadPct:           0.3,
		MaxSpreadPct:           15.0,
		MaxSlippagePct:         0.5,
		MaxBidAskSpreadPct:     0.4,
		MinDepthVsHistoryRatio: 0.5,
		WarningDepthRatio:      0.75,
		MaxPositionToExitRatio: 0.5,
		MinExitLiquidityUSD:    5000,
		SuggestedPositionUSD:   10000,
		MaxSpreadAgeHours:      4,
		MaxLatencyMs:           2000,
		MinHistorySamples:      20,
		AlertCooldownSeconds:   900,
	}
}

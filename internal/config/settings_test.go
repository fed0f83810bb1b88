package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type fakeSettingsStore struct {
	values map[string]string
}

func (f *fakeSettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func writeSettingsFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write settings file: %v", err)
	}
	return path
}

const baselineSettingsYAML = `
min_spread_pct: 0.3
max_spread_pct: 15.0
max_slippage_pct: 0.5
max_bid_ask_spread_pct: 0.4
min_depth_vs_history_ratio: 0.5
max_position_to_exit_ratio: 0.5
min_exit_liquidity_usd: 5000
max_spread_age_hours: 4
max_latency_ms: 2000
alert_cooldown_seconds: 900
`

func TestLoadSettings_FileOnly(t *testing.T) {
	path := writeSettingsFile(t, baselineSettingsYAML)

	s, err := LoadSettings(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.MinSpreadPct != 0.3 {
		t.Errorf("MinSpreadPct = %v, want 0.3", s.MinSpreadPct)
	}
	if s.MinExitLiquidityUSD != 5000 {
		t.Errorf("MinExitLiquidityUSD = %v, want 5000", s.MinExitLiquidityUSD)
	}
}

func TestLoadSettings_RuntimeOverridesFileAndEnv(t *testing.T) {
	path := writeSettingsFile(t, baselineSettingsYAML)

	t.Setenv("ARBIQ_MIN_SPREAD_PCT", "0.45")
	store := &fakeSettingsStore{values: map[string]string{"min_spread_pct": "0.9"}}

	s, err := LoadSettings(context.Background(), path, store)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.MinSpreadPct != 0.9 {
		t.Errorf("MinSpreadPct = %v, want 0.9 (runtime store should win)", s.MinSpreadPct)
	}
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	path := writeSettingsFile(t, baselineSettingsYAML)
	t.Setenv("ARBIQ_MAX_SPREAD_PCT", "20")

	s, err := LoadSettings(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.MaxSpreadPct != 20 {
		t.Errorf("MaxSpreadPct = %v, want 20 (env should win over file)", s.MaxSpreadPct)
	}
}

func TestLoadSettings_MissingRequiredKeyFails(t *testing.T) {
	path := writeSettingsFile(t, "min_spread_pct: 0.3\n")

	if _, err := LoadSettings(context.Background(), path, nil); err == nil {
		t.Fatal("expected error for missing required settings, got nil")
	}
}

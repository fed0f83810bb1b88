// Package appctx wires every component package into one process-level
// dependency graph (§9 "Design Notes": no global singletons, every
// dependency threaded explicitly), grounded on the teacher's
// internal/infrastructure/db.Manager wiring pattern, generalized from a
// single Postgres connection to the full venue/store/repo/notifier/
// metrics/orchestrator graph this spec needs.
package appctx

import "time"

// Config is every environment-tunable input the wiring needs, following
// the teacher's Config-struct-with-env-tags shape.
type Config struct {
	VenuesConfigPath string `yaml:"venues_config_path" env:"ARBIQ_VENUES_CONFIG"`
	JobsConfigPath   string `yaml:"jobs_config_path" env:"ARBIQ_JOBS_CONFIG"`
	SettingsPath     string `yaml:"settings_path" env:"ARBIQ_SETTINGS_PATH"`

	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`

	Peripheral PeripheralConfig `yaml:"peripheral"`
}

// PostgresConfig mirrors the teacher's db.Config field-for-field: DSN plus
// connection-pool tuning, with persistence disabled by default until
// explicitly turned on (matching the teacher's "requires explicit
// configuration" default).
type PostgresConfig struct {
	DSN             string        `yaml:"dsn" env:"ARBIQ_PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"ARBIQ_PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"ARBIQ_PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"ARBIQ_PG_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"ARBIQ_PG_CONN_MAX_IDLE_TIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"ARBIQ_PG_QUERY_TIMEOUT"`
	Enabled         bool          `yaml:"enabled" env:"ARBIQ_PG_ENABLED"`
}

// DefaultPostgresConfig mirrors the teacher's db.DefaultConfig defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// RedisConfig configures the KV store connection (§6).
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ARBIQ_REDIS_ADDR"`
	Password string `yaml:"password" env:"ARBIQ_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"ARBIQ_REDIS_DB"`
}

// TelegramConfig configures the outbound alert channel (§6).
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"ARBIQ_TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `yaml:"chat_id" env:"ARBIQ_TELEGRAM_CHAT_ID"`
	Enabled  bool   `yaml:"enabled" env:"ARBIQ_TELEGRAM_ENABLED"`
}

// PeripheralConfig configures the §4.12 peripheral strategy engines.
type PeripheralConfig struct {
	FundingThresholdBps float64      `yaml:"funding_threshold_bps"`
	DepegThresholdBps   float64      `yaml:"depeg_threshold_bps"`
	StablecoinSymbols   []string     `yaml:"stablecoin_symbols"`
	ZScorePairs         []ZScorePair `yaml:"zscore_pairs"`
}

// ZScorePair is one configured symbol pair for the z-score engine.
type ZScorePair struct {
	VenueID string  `yaml:"venue_id"`
	SymbolA string  `yaml:"symbol_a"`
	SymbolB string  `yaml:"symbol_b"`
	ZBound  float64 `yaml:"z_bound"`
}

package appctx

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/arbiq/scanner/internal/persistence"
	"github.com/arbiq/scanner/internal/persistence/postgres"
)

// PostgresManager owns the relational connection and the repository set
// built over it, grounded directly on the teacher's
// internal/infrastructure/db.Manager (same Open/SetMax*/PingContext
// sequence, same disabled-by-default shape when no DSN is configured).
type PostgresManager struct {
	db      *sqlx.DB
	cfg     PostgresConfig
	repo    persistence.Repository
	enabled bool
}

// NewPostgresManager opens the connection (if enabled) and wires the three
// postgres-backed repositories over it.
func NewPostgresManager(cfg PostgresConfig) (*PostgresManager, error) {
	if !cfg.Enabled {
		return &PostgresManager{cfg: cfg}, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("appctx: postgres dsn is required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("appctx: open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("appctx: ping postgres: %w", err)
	}

	repo := persistence.Repository{
		Signals:     postgres.NewSignalsRepo(db, cfg.QueryTimeout),
		Convergence: postgres.NewConvergenceRepo(db, cfg.QueryTimeout),
		Peripheral:  postgres.NewPeripheralRepo(db, cfg.QueryTimeout),
	}

	return &PostgresManager{db: db, cfg: cfg, repo: repo, enabled: true}, nil
}

// Repository returns the wired repository set, zero-valued if disabled.
func (m *PostgresManager) Repository() persistence.Repository { return m.repo }

// Enabled reports whether a live connection backs this manager.
func (m *PostgresManager) Enabled() bool { return m.enabled }

// Close releases the underlying connection, if any.
func (m *PostgresManager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Health reports relational-store reachability for the `health` CLI
// subcommand (§2.1), implementing persistence.RepositoryHealth.
func (m *PostgresManager) Health(ctx context.Context) persistence.HealthCheck {
	if !m.enabled {
		return persistence.HealthCheck{
			Healthy:        true,
			Errors:         []string{"postgres persistence disabled"},
			ConnectionPool: map[string]int{"status": 0},
			LastCheck:      time.Now(),
		}
	}

	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()

	var errs []string
	healthy := true
	if err := m.db.PingContext(pingCtx); err != nil {
		errs = append(errs, fmt.Sprintf("ping failed: %v", err))
		healthy = false
	}

	stats := m.db.Stats()
	return persistence.HealthCheck{
		Healthy: healthy,
		Errors:  errs,
		ConnectionPool: map[string]int{
			"max_open": stats.MaxOpenConnections,
			"open":     stats.OpenConnections,
			"in_use":   stats.InUse,
			"idle":     stats.Idle,
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
}

// Ping implements persistence.RepositoryHealth.
func (m *PostgresManager) Ping(ctx context.Context) error {
	if !m.enabled {
		return nil
	}
	return m.db.PingContext(ctx)
}

// Stats implements persistence.RepositoryHealth.
func (m *PostgresManager) Stats(ctx context.Context) map[string]interface{} {
	if !m.enabled {
		return map[string]interface{}{"enabled": false}
	}
	stats := m.db.Stats()
	return map[string]interface{}{
		"enabled":   true,
		"max_open":  stats.MaxOpenConnections,
		"open":      stats.OpenConnections,
		"in_use":    stats.InUse,
		"idle":      stats.Idle,
		"wait_count": stats.WaitCount,
	}
}

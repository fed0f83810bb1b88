package persistence

import (
	"context"
	"time"

	"github.com/arbiq/scanner/internal/domain"
)

// TimeRange bounds a time-window query.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SignalsRepo persists ValidatedSignal rows (§6 "signals" table) and the
// lifecycle fields a signal accumulates after emission: the Telegram
// message id it was sent as, and the timestamps at which it was sent,
// acted on, or closed out.
type SignalsRepo interface {
	// Insert adds a newly emitted signal; its ts column is the signal's CreatedAt.
	Insert(ctx context.Context, signal domain.ValidatedSignal) error

	// MarkSent records the outbound Telegram message id once delivered.
	MarkSent(ctx context.Context, signalID string, telegramMsgID int64, sentAt time.Time) error

	// MarkTaken records that an operator acted on the signal.
	MarkTaken(ctx context.Context, signalID string, takenAt time.Time) error

	// MarkClosed records the signal's terminal state.
	MarkClosed(ctx context.Context, signalID string, closedAt time.Time) error

	// GetByID fetches a single signal by id.
	GetByID(ctx context.Context, signalID string) (*domain.ValidatedSignal, error)

	// ListBySymbol retrieves signals for a symbol within a time range, newest first.
	ListBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]domain.ValidatedSignal, error)

	// ListByStrategy retrieves signals of a given strategy_type within a time range.
	ListByStrategy(ctx context.Context, strategyType string, tr TimeRange, limit int) ([]domain.ValidatedSignal, error)

	// ListByStatus retrieves signals in a given lifecycle status.
	ListByStatus(ctx context.Context, status string, limit int) ([]domain.ValidatedSignal, error)

	// CountByStrategy returns emitted-signal counts grouped by strategy_type.
	CountByStrategy(ctx context.Context, tr TimeRange) (map[string]int64, error)
}

// ConvergenceRepo persists ConvergenceRecord rows (§6 "spread_convergence")
// and their append-only ConvergenceSnapshot history (§6 "convergence_snapshots").
type ConvergenceRepo interface {
	// Insert creates the convergence record for a freshly emitted signal
	// (snapshot_seq starts at 0 per §4.10 — the caller inserts snapshot 0
	// via InsertSnapshot once the record exists).
	Insert(ctx context.Context, record domain.ConvergenceRecord) error

	// Update persists the running current/min/max aggregates and
	// converged/diverged/closed state for one tick.
	Update(ctx context.Context, record domain.ConvergenceRecord) error

	// GetBySignalID fetches the convergence record for one signal.
	GetBySignalID(ctx context.Context, signalID string) (*domain.ConvergenceRecord, error)

	// ListActive returns every record with closed_at IS NULL, for the
	// periodic convergence worker to re-tick.
	ListActive(ctx context.Context) ([]domain.ConvergenceRecord, error)

	// InsertSnapshot appends one convergence_snapshots row. Unique on
	// (signal_id, snapshot_seq); a duplicate seq is a caller bug, not a
	// retriable condition.
	InsertSnapshot(ctx context.Context, snapshot domain.ConvergenceSnapshot) error

	// ListSnapshots returns a signal's full snapshot history, ordered by
	// snapshot_seq ascending.
	ListSnapshots(ctx context.Context, signalID string) ([]domain.ConvergenceSnapshot, error)
}

// FundingLogEntry is one row of the peripheral funding-rate alerter's log
// (§4.12, §6 "funding_log").
type FundingLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	Ts        time.Time `json:"ts" db:"ts"`
	VenueID   string    `json:"venue_id" db:"venue_id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	FundingBps float64  `json:"funding_bps" db:"funding_bps"`
	Alerted   bool      `json:"alerted" db:"alerted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ZScoreLogEntry is one row of the peripheral z-score pairs engine's log
// (§4.12, §6 "zscore_log").
type ZScoreLogEntry struct {
	ID         int64     `json:"id" db:"id"`
	Ts         time.Time `json:"ts" db:"ts"`
	SymbolA    string    `json:"symbol_a" db:"symbol_a"`
	SymbolB    string    `json:"symbol_b" db:"symbol_b"`
	ZScore     float64   `json:"z_score" db:"z_score"`
	RatioValue float64   `json:"ratio_value" db:"ratio_value"`
	Alerted    bool      `json:"alerted" db:"alerted"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// PeripheralRepo persists the auxiliary-engine logs from §4.12. These are
// append-only and queried far less often than SignalsRepo/ConvergenceRepo,
// so one narrow interface covers both tables rather than two near-identical
// ones.
type PeripheralRepo interface {
	InsertFunding(ctx context.Context, entry FundingLogEntry) error
	InsertZScore(ctx context.Context, entry ZScoreLogEntry) error
	ListFundingBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]FundingLogEntry, error)
	ListZScoreByPair(ctx context.Context, symbolA, symbolB string, tr TimeRange, limit int) ([]ZScoreLogEntry, error)
}

// Repository aggregates every persistence interface the orchestrator wires
// into the appctx (§9).
type Repository struct {
	Signals     SignalsRepo
	Convergence ConvergenceRepo
	Peripheral  PeripheralRepo
}

// HealthCheck reports relational-store reachability for the process's
// health surface (consumed by the CLI's `health` subcommand, §2.1).
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth is implemented alongside each concrete repo set so the
// CLI and orchestrator can probe the store without reaching into sqlx
// directly.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}

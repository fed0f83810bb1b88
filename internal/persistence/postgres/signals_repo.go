package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/persistence"
)

// signalsRepo implements persistence.SignalsRepo against the "signals"
// table (§6), following the original trades repo's prepared-statement and
// pq.Error duplicate-handling pattern.
type signalsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalsRepo creates a PostgreSQL-backed SignalsRepo.
func NewSignalsRepo(db *sqlx.DB, timeout time.Duration) persistence.SignalsRepo {
	return &signalsRepo{db: db, timeout: timeout}
}

// Insert adds a newly emitted signal.
func (r *signalsRepo) Insert(ctx context.Context, signal domain.ValidatedSignal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	details, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal signal details: %w", err)
	}

	query := `
		INSERT INTO signals (id, ts, strategy, class, symbol, details, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		signal.ID, signal.CreatedAt, signal.StrategyType, signal.SignalType,
		signal.Symbol, details, signal.Status)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate signal %s: %w", signal.ID, err)
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// MarkSent records the outbound Telegram message id once delivered.
func (r *signalsRepo) MarkSent(ctx context.Context, signalID string, telegramMsgID int64, sentAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE signals SET telegram_msg_id = $1, status = 'sent', sent_at = $2 WHERE id = $3`,
		telegramMsgID, sentAt, signalID)
	if err != nil {
		return fmt.Errorf("mark signal sent: %w", err)
	}
	return nil
}

// MarkTaken records that an operator acted on the signal.
func (r *signalsRepo) MarkTaken(ctx context.Context, signalID string, takenAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE signals SET status = 'taken', taken_at = $1 WHERE id = $2`, takenAt, signalID)
	if err != nil {
		return fmt.Errorf("mark signal taken: %w", err)
	}
	return nil
}

// MarkClosed records the signal's terminal state.
func (r *signalsRepo) MarkClosed(ctx context.Context, signalID string, closedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE signals SET status = 'closed', closed_at = $1 WHERE id = $2`, closedAt, signalID)
	if err != nil {
		return fmt.Errorf("mark signal closed: %w", err)
	}
	return nil
}

// GetByID fetches a single signal by id.
func (r *signalsRepo) GetByID(ctx context.Context, signalID string) (*domain.ValidatedSignal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var details []byte
	row := r.db.QueryRowxContext(ctx, `SELECT details FROM signals WHERE id = $1`, signalID)
	if err := row.Scan(&details); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return unmarshalSignal(details)
}

// ListBySymbol retrieves signals for a symbol within a time range, newest first.
func (r *signalsRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.ValidatedSignal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT details FROM signals
		WHERE symbol = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("list signals by symbol: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// ListByStrategy retrieves signals of a given strategy_type within a time range.
func (r *signalsRepo) ListByStrategy(ctx context.Context, strategyType string, tr persistence.TimeRange, limit int) ([]domain.ValidatedSignal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT details FROM signals
		WHERE strategy = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, strategyType, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("list signals by strategy: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// ListByStatus retrieves signals in a given lifecycle status.
func (r *signalsRepo) ListByStatus(ctx context.Context, status string, limit int) ([]domain.ValidatedSignal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx,
		`SELECT details FROM signals WHERE status = $1 ORDER BY ts DESC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list signals by status: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// CountByStrategy returns emitted-signal counts grouped by strategy_type.
func (r *signalsRepo) CountByStrategy(ctx context.Context, tr persistence.TimeRange) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT strategy, COUNT(*) FROM signals
		WHERE ts >= $1 AND ts <= $2
		GROUP BY strategy ORDER BY strategy`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("count signals by strategy: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var strategy string
		var count int64
		if err := rows.Scan(&strategy, &count); err != nil {
			return nil, fmt.Errorf("scan strategy count: %w", err)
		}
		counts[strategy] = count
	}
	return counts, rows.Err()
}

func scanSignals(rows *sqlx.Rows) ([]domain.ValidatedSignal, error) {
	var signals []domain.ValidatedSignal
	for rows.Next() {
		var details []byte
		if err := rows.Scan(&details); err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		sig, err := unmarshalSignal(details)
		if err != nil {
			return nil, err
		}
		signals = append(signals, *sig)
	}
	return signals, rows.Err()
}

func unmarshalSignal(details []byte) (*domain.ValidatedSignal, error) {
	var sig domain.ValidatedSignal
	if err := json.Unmarshal(details, &sig); err != nil {
		return nil, fmt.Errorf("unmarshal signal details: %w", err)
	}
	return &sig, nil
}

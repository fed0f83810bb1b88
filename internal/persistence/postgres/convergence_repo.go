package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/persistence"
)

// convergenceRepo implements persistence.ConvergenceRepo against the
// "spread_convergence" and "convergence_snapshots" tables (§6), following
// the signals repo's prepared-statement/pq.Error pattern.
type convergenceRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewConvergenceRepo creates a PostgreSQL-backed ConvergenceRepo.
func NewConvergenceRepo(db *sqlx.DB, timeout time.Duration) persistence.ConvergenceRepo {
	return &convergenceRepo{db: db, timeout: timeout}
}

func (r *convergenceRepo) Insert(ctx context.Context, rec domain.ConvergenceRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO spread_convergence
			(signal_id, initial_spread_pct, current_spread_pct, min_spread_pct, max_spread_pct,
			 converged, diverged, checks_count, started_at, last_checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		rec.SignalID, rec.InitialSpreadPct, rec.Current, rec.Min, rec.Max,
		rec.Converged, rec.Diverged, rec.ChecksCount, rec.StartedAt, rec.LastCheckedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate convergence record for signal %s: %w", rec.SignalID, err)
		}
		return fmt.Errorf("insert convergence record: %w", err)
	}
	return nil
}

func (r *convergenceRepo) Update(ctx context.Context, rec domain.ConvergenceRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE spread_convergence SET
			current_spread_pct = $1, min_spread_pct = $2, max_spread_pct = $3,
			converged = $4, converged_at = $5, diverged = $6, diverged_at = $7,
			checks_count = $8, last_checked_at = $9, closed_at = $10, close_reason = $11
		WHERE signal_id = $12`

	var closeReason *string
	if rec.CloseReason != "" {
		s := string(rec.CloseReason)
		closeReason = &s
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.Current, rec.Min, rec.Max, rec.Converged, rec.ConvergedAt,
		rec.Diverged, rec.DivergedAt, rec.ChecksCount, rec.LastCheckedAt,
		rec.ClosedAt, closeReason, rec.SignalID)
	if err != nil {
		return fmt.Errorf("update convergence record: %w", err)
	}
	return nil
}

func (r *convergenceRepo) GetBySignalID(ctx context.Context, signalID string) (*domain.ConvergenceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rec domain.ConvergenceRecord
	var closeReason sql.NullString
	row := r.db.QueryRowxContext(ctx, `
		SELECT signal_id, initial_spread_pct, current_spread_pct, min_spread_pct, max_spread_pct,
		       converged, converged_at, diverged, diverged_at, checks_count,
		       started_at, last_checked_at, closed_at, close_reason
		FROM spread_convergence WHERE signal_id = $1`, signalID)

	err := row.Scan(&rec.SignalID, &rec.InitialSpreadPct, &rec.Current, &rec.Min, &rec.Max,
		&rec.Converged, &rec.ConvergedAt, &rec.Diverged, &rec.DivergedAt, &rec.ChecksCount,
		&rec.StartedAt, &rec.LastCheckedAt, &rec.ClosedAt, &closeReason)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get convergence record: %w", err)
	}
	if closeReason.Valid {
		rec.CloseReason = domain.CloseReason(closeReason.String)
	}
	return &rec, nil
}

func (r *convergenceRepo) ListActive(ctx context.Context) ([]domain.ConvergenceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT signal_id, initial_spread_pct, current_spread_pct, min_spread_pct, max_spread_pct,
		       converged, converged_at, diverged, diverged_at, checks_count,
		       started_at, last_checked_at, closed_at, close_reason
		FROM spread_convergence WHERE closed_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list active convergence records: %w", err)
	}
	defer rows.Close()

	var records []domain.ConvergenceRecord
	for rows.Next() {
		var rec domain.ConvergenceRecord
		var closeReason sql.NullString
		if err := rows.Scan(&rec.SignalID, &rec.InitialSpreadPct, &rec.Current, &rec.Min, &rec.Max,
			&rec.Converged, &rec.ConvergedAt, &rec.Diverged, &rec.DivergedAt, &rec.ChecksCount,
			&rec.StartedAt, &rec.LastCheckedAt, &rec.ClosedAt, &closeReason); err != nil {
			return nil, fmt.Errorf("scan active convergence record: %w", err)
		}
		if closeReason.Valid {
			rec.CloseReason = domain.CloseReason(closeReason.String)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *convergenceRepo) InsertSnapshot(ctx context.Context, snap domain.ConvergenceSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO convergence_snapshots
			(signal_id, snapshot_seq, ts, low_bid, low_ask, high_bid, high_ask,
			 spread_pct, low_depth_usd, high_depth_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		snap.SignalID, snap.SnapshotSeq, snap.Ts, snap.LowBid, snap.LowAsk,
		snap.HighBid, snap.HighAsk, snap.SpreadPct, snap.LowDepthUSD, snap.HighDepthUSD)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate snapshot %s/%d: %w", snap.SignalID, snap.SnapshotSeq, err)
		}
		return fmt.Errorf("insert convergence snapshot: %w", err)
	}
	return nil
}

func (r *convergenceRepo) ListSnapshots(ctx context.Context, signalID string) ([]domain.ConvergenceSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT signal_id, snapshot_seq, ts, low_bid, low_ask, high_bid, high_ask,
		       spread_pct, low_depth_usd, high_depth_usd
		FROM convergence_snapshots WHERE signal_id = $1 ORDER BY snapshot_seq ASC`, signalID)
	if err != nil {
		return nil, fmt.Errorf("list convergence snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.ConvergenceSnapshot
	for rows.Next() {
		var s domain.ConvergenceSnapshot
		if err := rows.Scan(&s.SignalID, &s.SnapshotSeq, &s.Ts, &s.LowBid, &s.LowAsk,
			&s.HighBid, &s.HighAsk, &s.SpreadPct, &s.LowDepthUSD, &s.HighDepthUSD); err != nil {
			return nil, fmt.Errorf("scan convergence snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

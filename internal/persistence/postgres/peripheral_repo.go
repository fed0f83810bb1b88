package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/arbiq/scanner/internal/persistence"
)

// peripheralRepo implements persistence.PeripheralRepo against the
// "funding_log" and "zscore_log" tables (§4.12, §6) used by the auxiliary
// strategy engines.
type peripheralRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPeripheralRepo creates a PostgreSQL-backed PeripheralRepo.
func NewPeripheralRepo(db *sqlx.DB, timeout time.Duration) persistence.PeripheralRepo {
	return &peripheralRepo{db: db, timeout: timeout}
}

func (r *peripheralRepo) InsertFunding(ctx context.Context, entry persistence.FundingLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO funding_log (ts, venue_id, symbol, funding_bps, alerted)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, entry.Ts, entry.VenueID, entry.Symbol, entry.FundingBps, entry.Alerted)
	if err != nil {
		return fmt.Errorf("insert funding log entry: %w", err)
	}
	return nil
}

func (r *peripheralRepo) InsertZScore(ctx context.Context, entry persistence.ZScoreLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO zscore_log (ts, symbol_a, symbol_b, z_score, ratio_value, alerted)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		entry.Ts, entry.SymbolA, entry.SymbolB, entry.ZScore, entry.RatioValue, entry.Alerted)
	if err != nil {
		return fmt.Errorf("insert zscore log entry: %w", err)
	}
	return nil
}

func (r *peripheralRepo) ListFundingBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]persistence.FundingLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, venue_id, symbol, funding_bps, alerted, created_at
		FROM funding_log WHERE symbol = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC LIMIT $4`
	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("list funding log: %w", err)
	}
	defer rows.Close()

	var entries []persistence.FundingLogEntry
	for rows.Next() {
		var e persistence.FundingLogEntry
		if err := rows.Scan(&e.ID, &e.Ts, &e.VenueID, &e.Symbol, &e.FundingBps, &e.Alerted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan funding log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *peripheralRepo) ListZScoreByPair(ctx context.Context, symbolA, symbolB string, tr persistence.TimeRange, limit int) ([]persistence.ZScoreLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, symbol_a, symbol_b, z_score, ratio_value, alerted, created_at
		FROM zscore_log WHERE symbol_a = $1 AND symbol_b = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts DESC LIMIT $5`
	rows, err := r.db.QueryxContext(ctx, query, symbolA, symbolB, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("list zscore log: %w", err)
	}
	defer rows.Close()

	var entries []persistence.ZScoreLogEntry
	for rows.Next() {
		var e persistence.ZScoreLogEntry
		if err := rows.Scan(&e.ID, &e.Ts, &e.SymbolA, &e.SymbolB, &e.ZScore, &e.RatioValue, &e.Alerted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan zscore log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

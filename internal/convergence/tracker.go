// Package convergence implements the Convergence Tracker (§4.10): a
// periodic worker that re-reads the two venues of an emitted signal and
// records how its spread evolves until it converges, diverges, or times
// out.
package convergence

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/persistence"
)

// Config holds the runtime-tunable parameters from §4.10/§6.
type Config struct {
	// ConvergenceFloorPct is the absolute spread percentage below which a
	// signal is considered converged.
	ConvergenceFloorPct decimal.Decimal
	// RequiredConsecutiveChecks (M) is how many consecutive checks must sit
	// at or below the floor before the record closes converged.
	RequiredConsecutiveChecks int
	// DivergenceMultiplier (Open Question (c), default 1.5): a signal is
	// marked diverged once |current| >= initial * multiplier.
	DivergenceMultiplier decimal.Decimal
	// MaxTrackingDuration closes a record with close_reason=timeout once
	// exceeded, regardless of convergence state.
	MaxTrackingDuration time.Duration
}

// DefaultConfig returns the §4.10 defaults (divergence_multiplier = 1.5);
// callers still must supply ConvergenceFloorPct, RequiredConsecutiveChecks,
// and MaxTrackingDuration from settings.
func DefaultConfig() Config {
	return Config{DivergenceMultiplier: decimal.NewFromFloat(1.5)}
}

// QuoteSource re-reads live venue state for the two legs of a tracked
// signal; implemented by appctx.LiveQuoteSource, which re-fetches both
// legs from their venue adapters.
type QuoteSource interface {
	Snapshot(ctx context.Context, pairID, lowVenue, highVenue string) (Snapshot, error)
}

// Snapshot is the venue state read for one convergence tick.
type Snapshot struct {
	LowBid, LowAsk   decimal.Decimal
	HighBid, HighAsk decimal.Decimal
	LowDepthUSD      decimal.Decimal
	HighDepthUSD     decimal.Decimal
}

// SpreadPct computes the current spread the same way the Calculators
// component does: (high_bid - low_ask) / low_ask * 100.
func (s Snapshot) SpreadPct() decimal.Decimal {
	if s.LowAsk.Sign() == 0 {
		return decimal.Zero
	}
	return s.HighBid.Sub(s.LowAsk).Div(s.LowAsk).Mul(decimal.NewFromInt(100))
}

// Tracker applies the closure rules to active records. Its streaks map
// tracks, per signal id, how many consecutive ticks have sat at or below
// the convergence floor. The map is held in memory, not persisted — it
// resets if the process restarts, which only delays a converged close,
// never causes an incorrect one.
type Tracker struct {
	repo    persistence.ConvergenceRepo
	signals persistence.SignalsRepo
	source  QuoteSource
	cfg     Config
	streaks map[string]int
}

// New builds a Tracker. signals is used only to re-derive which two venues
// a signal_id refers to on each tick (ConvergenceRecord itself carries no
// venue identifiers).
func New(repo persistence.ConvergenceRepo, signals persistence.SignalsRepo, source QuoteSource, cfg Config) *Tracker {
	return &Tracker{repo: repo, signals: signals, source: source, cfg: cfg, streaks: make(map[string]int)}
}

// Start inserts the ConvergenceRecord and its snapshot_seq=0 row for a
// freshly emitted signal (§4.10).
func (t *Tracker) Start(ctx context.Context, signal domain.ValidatedSignal, now time.Time) error {
	initial := signal.Spread.NetPct
	record := domain.ConvergenceRecord{
		SignalID:         signal.ID,
		InitialSpreadPct: initial,
		Current:          initial,
		Min:              initial,
		Max:              initial,
		StartedAt:        now,
		LastCheckedAt:    now,
	}
	if err := t.repo.Insert(ctx, record); err != nil {
		return fmt.Errorf("convergence: insert record for signal %s: %w", signal.ID, err)
	}

	snap, err := t.source.Snapshot(ctx, signal.PairID, signal.LowVenue, signal.HighVenue)
	if err != nil {
		return fmt.Errorf("convergence: initial snapshot for signal %s: %w", signal.ID, err)
	}
	snapshot := domain.ConvergenceSnapshot{
		SignalID:     signal.ID,
		SnapshotSeq:  0,
		Ts:           now,
		LowBid:       snap.LowBid,
		LowAsk:       snap.LowAsk,
		HighBid:      snap.HighBid,
		HighAsk:      snap.HighAsk,
		SpreadPct:    snap.SpreadPct(),
		LowDepthUSD:  snap.LowDepthUSD,
		HighDepthUSD: snap.HighDepthUSD,
	}
	return t.repo.InsertSnapshot(ctx, snapshot)
}

// TickAll re-reads every active record once, applying the closure rules.
// Errors re-reading one signal's venues are logged by the caller and do not
// abort the batch — this mirrors the orchestrator's per-loop error
// isolation (§4.11).
func (t *Tracker) TickAll(ctx context.Context, now time.Time, onErr func(signalID string, err error)) {
	records, err := t.repo.ListActive(ctx)
	if err != nil {
		onErr("", err)
		return
	}
	for _, record := range records {
		if err := t.tickOne(ctx, record, now); err != nil {
			onErr(record.SignalID, err)
		}
	}
}

func (t *Tracker) tickOne(ctx context.Context, record domain.ConvergenceRecord, now time.Time) error {
	if record.Closed() {
		return nil
	}

	signal, err := t.signalVenues(ctx, record.SignalID)
	if err != nil {
		return err
	}

	snap, err := t.source.Snapshot(ctx, signal.PairID, signal.LowVenue, signal.HighVenue)
	if err != nil {
		return fmt.Errorf("convergence: snapshot for signal %s: %w", record.SignalID, err)
	}

	existing, err := t.repo.ListSnapshots(ctx, record.SignalID)
	if err != nil {
		return fmt.Errorf("convergence: list snapshots for signal %s: %w", record.SignalID, err)
	}
	nextSeq := len(existing)

	current := snap.SpreadPct()
	snapshot := domain.ConvergenceSnapshot{
		SignalID:     record.SignalID,
		SnapshotSeq:  nextSeq,
		Ts:           now,
		LowBid:       snap.LowBid,
		LowAsk:       snap.LowAsk,
		HighBid:      snap.HighBid,
		HighAsk:      snap.HighAsk,
		SpreadPct:    current,
		LowDepthUSD:  snap.LowDepthUSD,
		HighDepthUSD: snap.HighDepthUSD,
	}
	if err := t.repo.InsertSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("convergence: insert snapshot for signal %s: %w", record.SignalID, err)
	}

	record.Current = current
	if current.LessThan(record.Min) {
		record.Min = current
	}
	if current.GreaterThan(record.Max) {
		record.Max = current
	}
	record.ChecksCount++
	record.LastCheckedAt = now

	t.applyClosureRules(&record, now)

	return t.repo.Update(ctx, record)
}

// applyClosureRules mutates record in place per the §4.10 closure rules.
func (t *Tracker) applyClosureRules(record *domain.ConvergenceRecord, now time.Time) {
	absCurrent := record.Current.Abs()

	if absCurrent.LessThanOrEqual(t.cfg.ConvergenceFloorPct) {
		t.streaks[record.SignalID]++
	} else {
		t.streaks[record.SignalID] = 0
	}

	divergeThreshold := record.InitialSpreadPct.Abs().Mul(t.cfg.DivergenceMultiplier)
	if absCurrent.GreaterThanOrEqual(divergeThreshold) {
		record.Diverged = true
		if record.DivergedAt == nil {
			at := now
			record.DivergedAt = &at
		}
	}

	switch {
	case t.streaks[record.SignalID] >= t.cfg.RequiredConsecutiveChecks:
		record.Converged = true
		at := now
		record.ConvergedAt = &at
		record.ClosedAt = &at
		record.CloseReason = domain.CloseConverged
		delete(t.streaks, record.SignalID)
	case now.Sub(record.StartedAt) >= t.cfg.MaxTrackingDuration:
		at := now
		record.ClosedAt = &at
		record.CloseReason = domain.CloseTimeout
		delete(t.streaks, record.SignalID)
	}
}

// signalVenues is the narrow (pair_id, low_venue, high_venue) view the
// tracker needs from a signal row on each tick.
type signalVenues struct {
	PairID    string
	LowVenue  string
	HighVenue string
}

func (t *Tracker) signalVenues(ctx context.Context, signalID string) (signalVenues, error) {
	sig, err := t.signals.GetByID(ctx, signalID)
	if err != nil {
		return signalVenues{}, fmt.Errorf("convergence: lookup signal %s: %w", signalID, err)
	}
	if sig == nil {
		return signalVenues{}, fmt.Errorf("convergence: signal %s not found", signalID)
	}
	return signalVenues{PairID: sig.PairID, LowVenue: sig.LowVenue, HighVenue: sig.HighVenue}, nil
}

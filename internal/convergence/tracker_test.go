package convergence

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/persistence"
)

type fakeConvergenceRepo struct {
	records   map[string]domain.ConvergenceRecord
	snapshots map[string][]domain.ConvergenceSnapshot
}

func newFakeConvergenceRepo() *fakeConvergenceRepo {
	return &fakeConvergenceRepo{
		records:   make(map[string]domain.ConvergenceRecord),
		snapshots: make(map[string][]domain.ConvergenceSnapshot),
	}
}

func (f *fakeConvergenceRepo) Insert(ctx context.Context, r domain.ConvergenceRecord) error {
	f.records[r.SignalID] = r
	return nil
}
func (f *fakeConvergenceRepo) Update(ctx context.Context, r domain.ConvergenceRecord) error {
	f.records[r.SignalID] = r
	return nil
}
func (f *fakeConvergenceRepo) GetBySignalID(ctx context.Context, signalID string) (*domain.ConvergenceRecord, error) {
	r, ok := f.records[signalID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
func (f *fakeConvergenceRepo) ListActive(ctx context.Context) ([]domain.ConvergenceRecord, error) {
	var out []domain.ConvergenceRecord
	for _, r := range f.records {
		if !r.Closed() {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeConvergenceRepo) InsertSnapshot(ctx context.Context, s domain.ConvergenceSnapshot) error {
	f.snapshots[s.SignalID] = append(f.snapshots[s.SignalID], s)
	return nil
}
func (f *fakeConvergenceRepo) ListSnapshots(ctx context.Context, signalID string) ([]domain.ConvergenceSnapshot, error) {
	return f.snapshots[signalID], nil
}

type fakeSignalsRepo struct {
	signals map[string]domain.ValidatedSignal
}

func (f *fakeSignalsRepo) Insert(ctx context.Context, s domain.ValidatedSignal) error { return nil }
func (f *fakeSignalsRepo) MarkSent(ctx context.Context, id string, msgID int64, at time.Time) error {
	return nil
}
func (f *fakeSignalsRepo) MarkTaken(ctx context.Context, id string, at time.Time) error  { return nil }
func (f *fakeSignalsRepo) MarkClosed(ctx context.Context, id string, at time.Time) error { return nil }
func (f *fakeSignalsRepo) GetByID(ctx context.Context, id string) (*domain.ValidatedSignal, error) {
	s, ok := f.signals[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
func (f *fakeSignalsRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.ValidatedSignal, error) {
	return nil, nil
}
func (f *fakeSignalsRepo) ListByStrategy(ctx context.Context, strategyType string, tr persistence.TimeRange, limit int) ([]domain.ValidatedSignal, error) {
	return nil, nil
}
func (f *fakeSignalsRepo) ListByStatus(ctx context.Context, status string, limit int) ([]domain.ValidatedSignal, error) {
	return nil, nil
}
func (f *fakeSignalsRepo) CountByStrategy(ctx context.Context, tr persistence.TimeRange) (map[string]int64, error) {
	return nil, nil
}

// fixedSpreadSource returns a fixed spread_pct on every call, driven by a
// caller-supplied sequence; used to script convergence/divergence paths.
type fixedSpreadSource struct {
	spreads []decimal.Decimal
	i       int
}

func (s *fixedSpreadSource) Snapshot(ctx context.Context, pairID, low, high string) (Snapshot, error) {
	spread := s.spreads[s.i]
	if s.i < len(s.spreads)-1 {
		s.i++
	}
	// Pick low_ask=100 fixed, high_bid derived so SpreadPct() == spread.
	lowAsk := decimal.NewFromInt(100)
	highBid := lowAsk.Add(lowAsk.Mul(spread).Div(decimal.NewFromInt(100)))
	return Snapshot{LowAsk: lowAsk, HighBid: highBid}, nil
}

func sampleSignal() domain.ValidatedSignal {
	return domain.ValidatedSignal{
		ID:        "sig-1",
		PairID:    "BTC|binance|jupiter",
		LowVenue:  "binance",
		HighVenue: "jupiter",
		Spread:    domain.SpreadBreakdown{NetPct: decimal.NewFromFloat(5.0)},
	}
}

func TestTracker_ConvergenceClosure(t *testing.T) {
	repo := newFakeConvergenceRepo()
	signals := &fakeSignalsRepo{signals: map[string]domain.ValidatedSignal{"sig-1": sampleSignal()}}
	source := &fixedSpreadSource{spreads: []decimal.Decimal{
		decimal.NewFromFloat(4.2), decimal.NewFromFloat(3.1), decimal.NewFromFloat(1.8),
		decimal.NewFromFloat(0.4), decimal.NewFromFloat(0.3), decimal.NewFromFloat(0.35),
	}}
	cfg := Config{
		ConvergenceFloorPct:       decimal.NewFromFloat(0.5),
		RequiredConsecutiveChecks: 2,
		DivergenceMultiplier:      decimal.NewFromFloat(1.5),
		MaxTrackingDuration:       24 * time.Hour,
	}
	tracker := &Tracker{repo: repo, signals: signals, source: source, cfg: cfg, streaks: make(map[string]int)}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.Start(context.Background(), sampleSignal(), now))

	var lastErr error
	onErr := func(id string, err error) { lastErr = err }

	for i := 0; i < 6; i++ {
		now = now.Add(time.Minute)
		tracker.TickAll(context.Background(), now, onErr)
	}
	require.NoError(t, lastErr)

	record := repo.records["sig-1"]
	assert.True(t, record.Converged, "record should close converged after two consecutive sub-floor checks")
	assert.Equal(t, domain.CloseConverged, record.CloseReason)
	assert.NotNil(t, record.ClosedAt)
}

func TestTracker_DivergedDoesNotClose(t *testing.T) {
	repo := newFakeConvergenceRepo()
	signals := &fakeSignalsRepo{signals: map[string]domain.ValidatedSignal{"sig-1": sampleSignal()}}
	source := &fixedSpreadSource{spreads: []decimal.Decimal{decimal.NewFromFloat(9.0)}}
	cfg := Config{
		ConvergenceFloorPct:       decimal.NewFromFloat(0.5),
		RequiredConsecutiveChecks: 2,
		DivergenceMultiplier:      decimal.NewFromFloat(1.5),
		MaxTrackingDuration:       24 * time.Hour,
	}
	tracker := &Tracker{repo: repo, signals: signals, source: source, cfg: cfg, streaks: make(map[string]int)}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.Start(context.Background(), sampleSignal(), now))
	tracker.TickAll(context.Background(), now.Add(time.Minute), func(string, error) {})

	record := repo.records["sig-1"]
	assert.True(t, record.Diverged, "9.0 >= 5.0*1.5 should mark diverged")
	assert.False(t, record.Closed(), "a diverged record stays open; operators want to keep seeing it")
}

func TestTracker_TimeoutClosesRecord(t *testing.T) {
	repo := newFakeConvergenceRepo()
	signals := &fakeSignalsRepo{signals: map[string]domain.ValidatedSignal{"sig-1": sampleSignal()}}
	source := &fixedSpreadSource{spreads: []decimal.Decimal{decimal.NewFromFloat(4.0)}}
	cfg := Config{
		ConvergenceFloorPct:       decimal.NewFromFloat(0.5),
		RequiredConsecutiveChecks: 2,
		DivergenceMultiplier:      decimal.NewFromFloat(1.5),
		MaxTrackingDuration:       time.Minute,
	}
	tracker := &Tracker{repo: repo, signals: signals, source: source, cfg: cfg, streaks: make(map[string]int)}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.Start(context.Background(), sampleSignal(), now))
	tracker.TickAll(context.Background(), now.Add(2*time.Minute), func(string, error) {})

	record := repo.records["sig-1"]
	assert.Equal(t, domain.CloseTimeout, record.CloseReason)
	assert.NotNil(t, record.ClosedAt)
}

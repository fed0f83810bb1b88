package peripheral

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/arbiq/scanner/internal/domain"
	"github.com/arbiq/scanner/internal/fetch"
	"github.com/arbiq/scanner/internal/messaging"
	"github.com/arbiq/scanner/internal/persistence"
)

// ZScoreWindow is the default rolling-window length in samples.
const ZScoreWindow = 120

// DefaultZBound is the default |z| alert threshold.
const DefaultZBound = 3.0

// PriceSnapshot reads the prices:latest KV snapshot the core fetcher
// writes — satisfied by *store.Store.
type PriceSnapshot interface {
	ReadPricesLatest(ctx context.Context) (map[string]domain.Quote, error)
}

// zRing is a fixed-capacity circular buffer of ratio samples, the same
// shape as track.depthRing but over price ratios rather than USD depth.
type zRing struct {
	samples []float64
	next    int
	cap     int
}

func newZRing(cap int) *zRing {
	if cap <= 0 {
		cap = ZScoreWindow
	}
	return &zRing{samples: make([]float64, 0, cap), cap: cap}
}

func (r *zRing) add(v float64) {
	if len(r.samples) < r.cap {
		r.samples = append(r.samples, v)
		return
	}
	r.samples[r.next] = v
	r.next = (r.next + 1) % r.cap
}

func (r *zRing) zScore(current float64) (z float64, ok bool) {
	n := len(r.samples)
	if n < 2 {
		return 0, false
	}
	var sum float64
	for _, v := range r.samples {
		sum += v
	}
	mean := sum / float64(n)
	var variance float64
	for _, v := range r.samples {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		if current == mean {
			return 0, false
		}
		// A window with zero historical variance that suddenly moves is the
		// most extreme deviation this engine can observe; report it as a
		// large-magnitude z rather than dividing by zero.
		if current > mean {
			return math.MaxFloat64, true
		}
		return -math.MaxFloat64, true
	}
	return (current - mean) / stddev, true
}

// PairConfig is one configured symbol pair the z-score engine tracks.
type PairConfig struct {
	VenueID string // which venue's quotes supply both legs' prices
	SymbolA string
	SymbolB string
	ZBound  float64
}

// ZScoreEngine computes a rolling z-score of the price ratio between two
// correlated symbols quoted on the same venue and alerts when |z| exceeds
// a configured bound (§4.12). Not the same symbol across venues — that is
// the core spread pipeline's job.
type ZScoreEngine struct {
	Source   PriceSnapshot
	Repo     persistence.PeripheralRepo
	Notifier messaging.Notifier
	Pairs    []PairConfig

	rings map[string]*zRing
}

// Run reads one prices:latest snapshot and advances every configured
// pair's rolling window. dryRun advances the window but never alerts or
// persists, so the window stays warm across dry runs.
func (e *ZScoreEngine) Run(ctx context.Context, dryRun bool) error {
	if e.rings == nil {
		e.rings = make(map[string]*zRing, len(e.Pairs))
	}
	snapshot, err := e.Source.ReadPricesLatest(ctx)
	if err != nil {
		return fmt.Errorf("peripheral: read prices:latest: %w", err)
	}

	for _, pc := range e.Pairs {
		qa, ok := snapshot[fetch.Key(pc.VenueID, pc.SymbolA)]
		if !ok {
			continue
		}
		qb, ok := snapshot[fetch.Key(pc.VenueID, pc.SymbolB)]
		if !ok {
			continue
		}
		midB := qb.MidPrice()
		if midB.IsZero() {
			continue
		}
		ratio, _ := qa.MidPrice().Div(midB).Float64()

		pairKey := pc.SymbolA + "/" + pc.SymbolB
		ring, ok := e.rings[pairKey]
		if !ok {
			ring = newZRing(ZScoreWindow)
			e.rings[pairKey] = ring
		}

		z, haveWindow := ring.zScore(ratio)
		ring.add(ratio)
		if !haveWindow {
			continue
		}

		bound := pc.ZBound
		if bound == 0 {
			bound = DefaultZBound
		}
		if math.Abs(z) < bound {
			continue
		}
		if dryRun {
			continue
		}

		text := fmt.Sprintf("*%s/%s* z-score alert on %s\nratio=%.6f z=%.2f", pc.SymbolA, pc.SymbolB, pc.VenueID, ratio, z)
		if _, err := e.Notifier.Send(ctx, messaging.Notification{Text: text}); err != nil {
			return fmt.Errorf("peripheral: send zscore alert: %w", err)
		}
		entry := persistence.ZScoreLogEntry{
			Ts:         time.Now(),
			SymbolA:    pc.SymbolA,
			SymbolB:    pc.SymbolB,
			ZScore:     z,
			RatioValue: ratio,
			Alerted:    true,
		}
		if err := e.Repo.InsertZScore(ctx, entry); err != nil {
			return fmt.Errorf("peripheral: insert zscore log: %w", err)
		}
	}
	return nil
}

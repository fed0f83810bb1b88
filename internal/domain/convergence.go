package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CloseReason enumerates how a ConvergenceRecord was closed.
type CloseReason string

const (
	CloseConverged CloseReason = "converged"
	CloseTimeout   CloseReason = "timeout"
)

// ConvergenceRecord tracks a signal's spread trajectory after emission
// (§3, §4.10). Running aggregates are kept on the record itself so the
// convergence loop never has to replay snapshot history on each tick.
type ConvergenceRecord struct {
	SignalID         string           `json:"signal_id"`
	InitialSpreadPct decimal.Decimal  `json:"initial_spread_pct"`
	Current          decimal.Decimal  `json:"current_spread_pct"`
	Min              decimal.Decimal  `json:"min_spread_pct"`
	Max              decimal.Decimal  `json:"max_spread_pct"`
	Converged        bool             `json:"converged"`
	ConvergedAt      *time.Time       `json:"converged_at,omitempty"`
	Diverged         bool             `json:"diverged"`
	DivergedAt       *time.Time       `json:"diverged_at,omitempty"`
	ChecksCount      int              `json:"checks_count"`
	// The count of consecutive checks with |current| <= floor is not a
	// field of this record and is not persisted; convergence.Tracker holds
	// it in memory per active signal and resets it whenever the spread
	// moves back above the floor.
	StartedAt        time.Time        `json:"started_at"`
	LastCheckedAt     time.Time       `json:"last_checked_at"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty"`
	CloseReason       CloseReason     `json:"close_reason,omitempty"`
}

// Closed reports whether the record accepts further updates.
func (c *ConvergenceRecord) Closed() bool {
	return c.ClosedAt != nil
}

// ConvergenceSnapshot is one append-only row of venue state recorded while a
// signal is tracked.
type ConvergenceSnapshot struct {
	SignalID   string          `json:"signal_id"`
	SnapshotSeq int            `json:"snapshot_seq"`
	Ts         time.Time       `json:"ts"`
	LowBid     decimal.Decimal `json:"low_bid"`
	LowAsk     decimal.Decimal `json:"low_ask"`
	HighBid    decimal.Decimal `json:"high_bid"`
	HighAsk    decimal.Decimal `json:"high_ask"`
	SpreadPct  decimal.Decimal `json:"spread_pct"`
	LowDepthUSD  decimal.Decimal `json:"low_depth_usd"`
	HighDepthUSD decimal.Decimal `json:"high_depth_usd"`
}

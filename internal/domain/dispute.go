package domain

import "time"

// DisputeThreshold is the adaptive minimum stake required to contest a
// market's resolution. Adjusted = Base + SizeFactor + ActivityFactor +
// ComplexityFactor, and must lie within the configured bounds.
type DisputeThreshold struct {
	MarketID         string
	Base             int64
	Adjusted         int64
	SizeFactor       int64
	ActivityFactor   int64
	ComplexityFactor int64
	ComputedAt       time.Time
}

// ThresholdHistoryEntry is one row of the append-only, per-market threshold
// change log, keyed by (market_id, seq) in strict chronological order.
type ThresholdHistoryEntry struct {
	MarketID     string
	Seq          int64
	OldThreshold int64
	NewThreshold int64
	Reason       string
	Actor        string
	CreatedAt    time.Time
}

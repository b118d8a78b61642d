package domain

import "time"

// ExtensionRecord is one row of the append-only, per-market extension log,
// keyed by (market_id, seq). Fee is the amount charged for the extension.
type ExtensionRecord struct {
	MarketID   string
	Seq        int64
	Days       int
	Fee        int64
	Reason     string
	Actor      string
	OldEndTime time.Time
	NewEndTime time.Time
	CreatedAt  time.Time
}

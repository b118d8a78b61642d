package domain

import "time"

// ResolutionMethod tags how a market's final outcome was derived.
type ResolutionMethod string

const (
	MethodOracleOnly        ResolutionMethod = "oracle_only"
	MethodCommunityOnly     ResolutionMethod = "community_only"
	MethodHybrid            ResolutionMethod = "hybrid"
	MethodAdminOverride     ResolutionMethod = "admin_override"
	MethodDisputeResolution ResolutionMethod = "dispute_resolution"
)

// Consensus is the aggregate of community votes on a market.
type Consensus struct {
	Outcome    string
	Votes      int
	TotalVotes int
	Percentage int // Votes * 100 / TotalVotes, 0 when no votes were cast
}

// OracleResolution records the conversion of an oracle price into a
// categorical outcome. It is persisted alongside the market's oracle_result.
type OracleResolution struct {
	MarketID   string
	Outcome    string
	Price      int64
	Threshold  int64
	Comparator Comparator
	Provider   string
	FeedID     string
	Confidence int // 0-100
	ResolvedAt time.Time
}

// MarketResolution records the final outcome of a market, the signals that
// produced it, and a 0-100 confidence score.
type MarketResolution struct {
	ID            string
	MarketID      string
	Outcome       string
	OracleOutcome string
	Consensus     Consensus
	Method        ResolutionMethod
	Confidence    int
	ResolvedAt    time.Time
}

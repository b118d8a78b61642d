// Package domain defines the core types of the hybrid resolution engine:
// markets, bets, resolutions, dispute thresholds, extensions, and the store
// and collaborator interfaces implemented by the infrastructure packages.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusDisputed  MarketStatus = "disputed"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Comparator is the relation applied to (price, threshold) when deriving a
// market outcome from an oracle price.
type Comparator string

const (
	CmpGT  Comparator = "gt"
	CmpGTE Comparator = "gte"
	CmpLT  Comparator = "lt"
	CmpLTE Comparator = "lte"
	CmpEQ  Comparator = "eq"
	CmpNE  Comparator = "ne"
)

// Valid reports whether c is one of the supported comparators.
func (c Comparator) Valid() bool {
	switch c {
	case CmpGT, CmpGTE, CmpLT, CmpLTE, CmpEQ, CmpNE:
		return true
	}
	return false
}

// OracleConfig describes the price feed a market is settled against. Threshold
// is a fixed-point integer in the smallest currency unit.
type OracleConfig struct {
	Provider   string
	FeedID     string
	Threshold  int64
	Comparator Comparator
}

// Market is a single prediction question with an ordered set of outcomes, a
// close time, and the accumulated votes and stakes of its participants. The
// whole record is read, modified, and written back as a unit; there are no
// partial-field updates.
type Market struct {
	ID       string
	Question string
	Outcomes []string
	EndTime  time.Time
	Admin    string
	Oracle   OracleConfig

	// OracleResult is the categorical outcome derived from the oracle price,
	// set exactly once after the market ends. Empty means not yet fetched.
	OracleResult string

	Votes         map[string]string // user -> chosen outcome
	Stakes        map[string]int64  // user -> staked amount
	DisputeStakes map[string]int64  // user -> dispute stake
	Claimed       map[string]bool   // user -> payout claimed

	// TotalStaked is the sum of all Stakes entries, maintained as an invariant.
	TotalStaked int64

	// WinningOutcome, once set, is terminal; only the dispute pathway may
	// replace it, and only while Status is Disputed.
	WinningOutcome string

	// FeeCollected transitions at most once, false -> true.
	FeeCollected bool

	TotalExtensionDays int
	MaxExtensionDays   int

	Status    MarketStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasEnded reports whether the market's voting window has closed as of now.
func (m *Market) HasEnded(now time.Time) bool {
	return !now.Before(m.EndTime)
}

// OracleResolved reports whether the oracle outcome has been recorded.
func (m *Market) OracleResolved() bool {
	return m.OracleResult != ""
}

// IsResolved reports whether a winning outcome has been set.
func (m *Market) IsResolved() bool {
	return m.WinningOutcome != ""
}

// HasOutcome reports whether label is one of the market's declared outcomes.
func (m *Market) HasOutcome(label string) bool {
	for _, o := range m.Outcomes {
		if o == label {
			return true
		}
	}
	return false
}

// VoteCount returns the number of addresses that have voted.
func (m *Market) VoteCount() int {
	return len(m.Votes)
}

// StakeOnOutcome sums the stakes of every participant whose vote matches the
// given outcome.
func (m *Market) StakeOnOutcome(outcome string) int64 {
	var total int64
	for user, voted := range m.Votes {
		if voted == outcome {
			total += m.Stakes[user]
		}
	}
	return total
}

// EnsureMaps initialises any nil participant maps so callers can write to
// them without nil checks.
func (m *Market) EnsureMaps() {
	if m.Votes == nil {
		m.Votes = make(map[string]string)
	}
	if m.Stakes == nil {
		m.Stakes = make(map[string]int64)
	}
	if m.DisputeStakes == nil {
		m.DisputeStakes = make(map[string]int64)
	}
	if m.Claimed == nil {
		m.Claimed = make(map[string]bool)
	}
}

// ValidAddress reports whether s is a well-formed EVM address. Participants
// and admins are identified by their on-chain addresses.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress returns the EIP-55 checksummed form of a hex address so
// that map keys and ledger rows use one canonical spelling.
func NormalizeAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

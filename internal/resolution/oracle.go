// Package resolution implements the outcome-deciding core of the engine:
// oracle price-to-outcome conversion, community consensus aggregation, and
// the hybrid decision that combines the two signals.
package resolution

import (
	"fmt"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// Confidence scoring constants. Scores are 0-100.
const (
	oracleBaseConfidence = 80

	// Deviation cutoffs in basis points of the threshold. A price far from
	// the threshold (>10%) makes the comparator outcome less trustworthy; a
	// price close to it (<5%) more so.
	wideDeviationBps  = 1000
	tightDeviationBps = 500

	wideDeviationPenalty = 20
	tightDeviationBonus  = 10
)

// compare applies cmp to (price, threshold).
func compare(cmp domain.Comparator, price, threshold int64) bool {
	switch cmp {
	case domain.CmpGT:
		return price > threshold
	case domain.CmpGTE:
		return price >= threshold
	case domain.CmpLT:
		return price < threshold
	case domain.CmpLTE:
		return price <= threshold
	case domain.CmpEQ:
		return price == threshold
	case domain.CmpNE:
		return price != threshold
	}
	return false
}

// OutcomeFromPrice converts an oracle price into one of the market's declared
// outcomes: the first outcome when the comparator holds, the second when it
// does not. Price and threshold must be strictly positive.
func OutcomeFromPrice(m *domain.Market, price int64) (string, error) {
	if price <= 0 {
		return "", domain.Validation(domain.CodeNonPositivePrice,
			fmt.Sprintf("oracle price must be positive, got %d", price))
	}
	if m.Oracle.Threshold <= 0 {
		return "", domain.Validation(domain.CodeNonPositiveThreshold,
			fmt.Sprintf("oracle threshold must be positive, got %d", m.Oracle.Threshold))
	}
	if !m.Oracle.Comparator.Valid() {
		return "", domain.Validation(domain.CodeInvalidComparator,
			fmt.Sprintf("unknown comparator %q", m.Oracle.Comparator))
	}
	if len(m.Outcomes) < 2 {
		return "", domain.Validation(domain.CodeInvalidOutcome,
			fmt.Sprintf("market %s declares %d outcomes, need at least 2", m.ID, len(m.Outcomes)))
	}

	outcome := m.Outcomes[1]
	if compare(m.Oracle.Comparator, price, m.Oracle.Threshold) {
		outcome = m.Outcomes[0]
	}
	if outcome == "" {
		return "", domain.Validation(domain.CodeEmptyOutcome, "derived outcome is empty")
	}
	return outcome, nil
}

// OracleConfidence scores an oracle resolution from the price's deviation
// from the threshold: base 80, -20 when the deviation exceeds 10%, +10 when
// it is under 5%. The result is clamped to [0, 100].
func OracleConfidence(price, threshold int64) int {
	diff := price - threshold
	if diff < 0 {
		diff = -diff
	}
	// Deviation in basis points, floor division.
	devBps := diff * 10000 / threshold

	score := oracleBaseConfidence
	if devBps > wideDeviationBps {
		score -= wideDeviationPenalty
	}
	if devBps < tightDeviationBps {
		score += tightDeviationBonus
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

package resolution

import "github.com/hybridmarkets/resolver/internal/domain"

// Per-method confidence constants.
const (
	oracleOnlyConfidence      = 85
	communityMaxConfidence    = 90
	hybridMaxConfidence       = 95
	adminConfidence           = 100
	disputeConfidence         = 75
	defaultHybridConsensusPct = 70
)

// Decision is the outcome of combining the oracle signal with community
// consensus.
type Decision struct {
	Outcome    string
	Method     domain.ResolutionMethod
	Confidence int
}

// Decide combines the oracle outcome with the community consensus into a
// final outcome, resolution method, and confidence score.
//
// When the consensus share exceeds hybridPct the method is Hybrid, otherwise
// OracleOnly. Under Hybrid, agreement between the two signals confirms the
// shared value; on disagreement the decision defers to the oracle outcome
// (the dispute pathway covers contestation).
func Decide(oracleOutcome string, cons domain.Consensus, hybridPct int) Decision {
	if hybridPct <= 0 {
		hybridPct = defaultHybridConsensusPct
	}

	if cons.Percentage > hybridPct {
		return Decision{
			Outcome:    oracleOutcome,
			Method:     domain.MethodHybrid,
			Confidence: MethodConfidence(domain.MethodHybrid, cons.Percentage),
		}
	}

	return Decision{
		Outcome:    oracleOutcome,
		Method:     domain.MethodOracleOnly,
		Confidence: MethodConfidence(domain.MethodOracleOnly, cons.Percentage),
	}
}

// MethodConfidence returns the confidence score for a resolution method given
// the consensus percentage: OracleOnly is fixed at 85, CommunityOnly is the
// consensus share capped at 90, Hybrid averages the oracle base with the
// consensus share capped at 95, AdminOverride is 100, and DisputeResolution
// is 75.
func MethodConfidence(method domain.ResolutionMethod, consensusPct int) int {
	switch method {
	case domain.MethodOracleOnly:
		return oracleOnlyConfidence
	case domain.MethodCommunityOnly:
		return minInt(consensusPct, communityMaxConfidence)
	case domain.MethodHybrid:
		return minInt((oracleOnlyConfidence+consensusPct)/2, hybridMaxConfidence)
	case domain.MethodAdminOverride:
		return adminConfidence
	case domain.MethodDisputeResolution:
		return disputeConfidence
	}
	return 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

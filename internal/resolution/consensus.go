package resolution

import "github.com/hybridmarkets/resolver/internal/domain"

// CalculateConsensus tallies one vote per address and returns the most-voted
// outcome with its share of the total. Stake amounts are tracked separately
// for payout and carry no tie-break weight here.
//
// Ties break to the earliest-declared outcome, and a market with no votes
// falls back to the first declared outcome with percentage 0, so the result
// is deterministic for any input.
func CalculateConsensus(m *domain.Market) domain.Consensus {
	counts := make(map[string]int, len(m.Outcomes))
	total := 0
	for _, outcome := range m.Votes {
		counts[outcome]++
		total++
	}

	cons := domain.Consensus{TotalVotes: total}
	if len(m.Outcomes) > 0 {
		cons.Outcome = m.Outcomes[0]
	}
	if total == 0 {
		return cons
	}

	// Walk outcomes in declared order so equal counts resolve to the
	// earliest label.
	best := -1
	for _, outcome := range m.Outcomes {
		if counts[outcome] > best {
			best = counts[outcome]
			cons.Outcome = outcome
			cons.Votes = counts[outcome]
		}
	}

	cons.Percentage = cons.Votes * 100 / total
	return cons
}

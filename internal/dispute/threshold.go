// Package dispute computes the adaptive stake threshold required to contest
// a market resolution.
package dispute

import (
	"fmt"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// baselineOutcomes is the outcome count above which the complexity factor
// starts accruing.
const baselineOutcomes = 3

// Params holds the numeric configuration for threshold computation. All
// amounts are fixed-point integers in the smallest currency unit.
type Params struct {
	Base         int64
	Min          int64
	Max          int64
	LargeMarket  int64 // total_staked cutoff for the size factor
	HighActivity int   // vote-count cutoff for the activity factor
}

// Compute derives the adaptive dispute threshold for a market:
// +50% of base for a large market, +25% of base for high voting activity,
// and +10% of base per outcome beyond three. The adjusted value must lie
// within [Min, Max] or an arithmetic error is returned and nothing is
// persisted by the caller.
func Compute(p Params, m *domain.Market, now time.Time) (domain.DisputeThreshold, error) {
	t := domain.DisputeThreshold{
		MarketID:   m.ID,
		Base:       p.Base,
		ComputedAt: now,
	}

	if m.TotalStaked > p.LargeMarket {
		t.SizeFactor = p.Base / 2
	}
	if m.VoteCount() > p.HighActivity {
		t.ActivityFactor = p.Base / 4
	}
	if extra := len(m.Outcomes) - baselineOutcomes; extra > 0 {
		t.ComplexityFactor = p.Base / 10 * int64(extra)
	}

	t.Adjusted = t.Base + t.SizeFactor + t.ActivityFactor + t.ComplexityFactor

	if err := p.CheckBounds(t.Adjusted); err != nil {
		return domain.DisputeThreshold{}, err
	}
	return t, nil
}

// CheckBounds validates that a threshold value lies within [Min, Max].
func (p Params) CheckBounds(value int64) error {
	if value < p.Min {
		return domain.Arithmetic(domain.CodeThresholdBelowMin,
			fmt.Sprintf("threshold %d below minimum dispute stake %d", value, p.Min))
	}
	if value > p.Max {
		return domain.Arithmetic(domain.CodeThresholdExceedsMax,
			fmt.Sprintf("threshold %d exceeds maximum %d", value, p.Max))
	}
	return nil
}

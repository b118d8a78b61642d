// Package payout computes each winning participant's fee-adjusted share of a
// resolved market's staked pool.
package payout

import (
	"fmt"
	"math/big"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// Calculate returns the payout for a participant who staked amount on the
// given outcome. Losing positions pay zero, as does a market where nothing
// was staked on the winning outcome.
//
// The arithmetic is integer fixed-point with floor division, applied in a
// fixed order: the fee is taken from the participant's amount first
// (user_share = amount * (100 - feePercent) / 100), then the share is scaled
// by the pool (payout = user_share * total_pool / winning_total). The
// intermediate products run through math/big so large pools cannot overflow;
// a final value outside int64 is reported as an arithmetic error.
func Calculate(m *domain.Market, outcome string, amount int64, feePercent int64) (int64, error) {
	if !m.IsResolved() {
		return 0, domain.State(domain.CodeNoOracleResult,
			fmt.Sprintf("market %s has no winning outcome yet", m.ID))
	}
	if feePercent < 0 || feePercent > 100 {
		return 0, domain.Validation(domain.CodeInvalidOutcome,
			fmt.Sprintf("fee percentage %d out of range", feePercent))
	}
	if amount <= 0 || outcome != m.WinningOutcome {
		return 0, nil
	}

	winningTotal := m.StakeOnOutcome(m.WinningOutcome)
	if winningTotal == 0 {
		// No stake backed the winning outcome; guards divide-by-zero.
		return 0, nil
	}
	pool := m.TotalStaked

	// user_share = amount * (100 - fee) / 100
	share := new(big.Int).Mul(big.NewInt(amount), big.NewInt(100-feePercent))
	share.Quo(share, big.NewInt(100))

	// payout = user_share * total_pool / winning_total
	result := new(big.Int).Mul(share, big.NewInt(pool))
	result.Quo(result, big.NewInt(winningTotal))

	if !result.IsInt64() {
		return 0, domain.Arithmetic(domain.CodePayoutOverflow,
			fmt.Sprintf("payout for market %s exceeds int64 range", m.ID))
	}
	return result.Int64(), nil
}

// Fee returns the platform fee owed on a market's total staked pool,
// floor-divided.
func Fee(totalStaked, feePercent int64) int64 {
	if totalStaked <= 0 || feePercent <= 0 {
		return 0
	}
	f := new(big.Int).Mul(big.NewInt(totalStaked), big.NewInt(feePercent))
	f.Quo(f, big.NewInt(100))
	return f.Int64()
}

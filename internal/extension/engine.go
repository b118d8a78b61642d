// Package extension validates and prices fee-gated extensions of a market's
// voting window.
package extension

import (
	"fmt"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// Params holds the numeric configuration for extensions.
type Params struct {
	MinDays   int
	MaxDays   int   // per-operation cap on additional days
	MaxCount  int   // maximum number of extensions per market
	FeePerDay int64 // fee charged per additional day
}

// Validate runs every extension check before any state is written. The
// checks mirror the operation's contract: day count, market state, the
// per-market day budget, the extension-count cap, and finally that the actor
// administers the market.
//
// A request above the per-operation day cap reports extension_days_exceeded
// (it can never fit the budget), while a request below the minimum is an
// invalid_extension_days validation failure.
func Validate(p Params, m *domain.Market, actor string, days int, historyCount int, now time.Time) error {
	if days < p.MinDays {
		return domain.Validation(domain.CodeInvalidExtensionDays,
			fmt.Sprintf("additional days %d below minimum %d", days, p.MinDays))
	}
	if days > p.MaxDays {
		return domain.Validation(domain.CodeExtensionDaysExceeded,
			fmt.Sprintf("additional days %d above per-extension maximum %d", days, p.MaxDays))
	}
	if m.IsResolved() || m.Status == domain.MarketStatusResolved || m.Status == domain.MarketStatusCancelled {
		return domain.State(domain.CodeAlreadyResolved,
			fmt.Sprintf("market %s is already settled", m.ID))
	}
	if m.HasEnded(now) {
		return domain.State(domain.CodeMarketNotActive,
			fmt.Sprintf("market %s is past its end time", m.ID))
	}
	if m.TotalExtensionDays+days > m.MaxExtensionDays {
		return domain.Validation(domain.CodeExtensionDaysExceeded,
			fmt.Sprintf("extension of %d days exceeds market budget %d (already used %d)",
				days, m.MaxExtensionDays, m.TotalExtensionDays))
	}
	if historyCount >= p.MaxCount {
		return domain.Validation(domain.CodeExtensionNotAllowed,
			fmt.Sprintf("market %s already extended %d times (max %d)", m.ID, historyCount, p.MaxCount))
	}
	if actor != m.Admin {
		return domain.Authorization(domain.CodeNotAdmin,
			fmt.Sprintf("actor %s does not administer market %s", actor, m.ID))
	}
	return nil
}

// Fee returns the charge for extending by the given number of days.
func Fee(p Params, days int) int64 {
	return int64(days) * p.FeePerDay
}

// Apply mutates the market for a validated extension: the end time moves
// forward by the day count and the running extension total grows. The caller
// persists the market and appends the extension record.
func Apply(m *domain.Market, days int) (oldEnd, newEnd time.Time) {
	oldEnd = m.EndTime
	newEnd = m.EndTime.Add(time.Duration(days) * 24 * time.Hour)
	m.EndTime = newEnd
	m.TotalExtensionDays += days
	return oldEnd, newEnd
}

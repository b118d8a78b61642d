package extension

import (
	"testing"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

var testParams = Params{
	MinDays:   1,
	MaxDays:   30,
	MaxCount:  3,
	FeePerDay: 1_000_000,
}

const admin = "0xAdmin"

func openMarket(now time.Time) domain.Market {
	return domain.Market{
		ID:               "mkt-1",
		Outcomes:         []string{"Yes", "No"},
		Admin:            admin,
		EndTime:          now.Add(48 * time.Hour),
		Status:           domain.MarketStatusActive,
		MaxExtensionDays: 90,
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		mutate       func(m *domain.Market)
		actor        string
		days         int
		historyCount int
		wantCode     string
	}{
		{
			name:   "valid request",
			mutate: func(m *domain.Market) {},
			actor:  admin, days: 7,
		},
		{
			name:   "exactly the per-extension maximum",
			mutate: func(m *domain.Market) {},
			actor:  admin, days: 30,
		},
		{
			name:   "below minimum days",
			mutate: func(m *domain.Market) {},
			actor:  admin, days: 0,
			wantCode: domain.CodeInvalidExtensionDays,
		},
		{
			name:   "above per-extension maximum",
			mutate: func(m *domain.Market) {},
			actor:  admin, days: 31,
			wantCode: domain.CodeExtensionDaysExceeded,
		},
		{
			name:     "already resolved",
			mutate:   func(m *domain.Market) { m.WinningOutcome = "Yes"; m.Status = domain.MarketStatusResolved },
			actor:    admin, days: 7,
			wantCode: domain.CodeAlreadyResolved,
		},
		{
			name:     "cancelled",
			mutate:   func(m *domain.Market) { m.Status = domain.MarketStatusCancelled },
			actor:    admin, days: 7,
			wantCode: domain.CodeAlreadyResolved,
		},
		{
			name:     "past end time",
			mutate:   func(m *domain.Market) { m.EndTime = now.Add(-time.Hour) },
			actor:    admin, days: 7,
			wantCode: domain.CodeMarketNotActive,
		},
		{
			name:     "budget exhausted",
			mutate:   func(m *domain.Market) { m.TotalExtensionDays = 85 },
			actor:    admin, days: 7,
			wantCode: domain.CodeExtensionDaysExceeded,
		},
		{
			name:         "count cap reached",
			mutate:       func(m *domain.Market) {},
			actor:        admin, days: 7,
			historyCount: 3,
			wantCode:     domain.CodeExtensionNotAllowed,
		},
		{
			name:     "non-admin actor",
			mutate:   func(m *domain.Market) {},
			actor:    "0xSomeoneElse", days: 7,
			wantCode: domain.CodeNotAdmin,
		},
		{
			// Day-count checks run before state checks: a bad day count on a
			// settled market reports the day count.
			name:     "day check precedes state check",
			mutate:   func(m *domain.Market) { m.Status = domain.MarketStatusCancelled },
			actor:    admin, days: 0,
			wantCode: domain.CodeInvalidExtensionDays,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := openMarket(now)
			tt.mutate(&m)
			err := Validate(testParams, &m, tt.actor, tt.days, tt.historyCount, now)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if code := domain.CodeOf(err); code != tt.wantCode {
				t.Errorf("Validate() code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestFee(t *testing.T) {
	if got := Fee(testParams, 7); got != 7_000_000 {
		t.Errorf("Fee(7) = %d, want 7000000", got)
	}
	if got := Fee(testParams, 0); got != 0 {
		t.Errorf("Fee(0) = %d, want 0", got)
	}
}

func TestApply(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := openMarket(now)
	m.TotalExtensionDays = 10
	end := m.EndTime

	oldEnd, newEnd := Apply(&m, 7)
	if !oldEnd.Equal(end) {
		t.Errorf("Apply() oldEnd = %v, want %v", oldEnd, end)
	}
	if want := end.Add(7 * 24 * time.Hour); !newEnd.Equal(want) {
		t.Errorf("Apply() newEnd = %v, want %v", newEnd, want)
	}
	if !m.EndTime.Equal(newEnd) {
		t.Errorf("Apply() market end = %v, want %v", m.EndTime, newEnd)
	}
	if m.TotalExtensionDays != 17 {
		t.Errorf("Apply() total extension days = %d, want 17", m.TotalExtensionDays)
	}
}

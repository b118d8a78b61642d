package resolution

import (
	"testing"

	"github.com/hybridmarkets/resolver/internal/domain"
)

func priceMarket(cmp domain.Comparator, threshold int64) *domain.Market {
	return &domain.Market{
		ID:       "mkt-1",
		Outcomes: []string{"Yes", "No"},
		Oracle: domain.OracleConfig{
			Provider:   "binance",
			FeedID:     "BTCUSDT",
			Threshold:  threshold,
			Comparator: cmp,
		},
	}
}

func TestOutcomeFromPrice(t *testing.T) {
	tests := []struct {
		name      string
		cmp       domain.Comparator
		threshold int64
		price     int64
		want      string
	}{
		{"gt above", domain.CmpGT, 100_000, 104_000, "Yes"},
		{"gt equal", domain.CmpGT, 100_000, 100_000, "No"},
		{"gt below", domain.CmpGT, 100_000, 96_000, "No"},
		{"gte equal", domain.CmpGTE, 100_000, 100_000, "Yes"},
		{"lt below", domain.CmpLT, 100_000, 96_000, "Yes"},
		{"lt above", domain.CmpLT, 100_000, 104_000, "No"},
		{"lte equal", domain.CmpLTE, 100_000, 100_000, "Yes"},
		{"eq equal", domain.CmpEQ, 100_000, 100_000, "Yes"},
		{"eq unequal", domain.CmpEQ, 100_000, 100_001, "No"},
		{"ne unequal", domain.CmpNE, 100_000, 100_001, "Yes"},
		{"ne equal", domain.CmpNE, 100_000, 100_000, "No"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := priceMarket(tt.cmp, tt.threshold)
			got, err := OutcomeFromPrice(m, tt.price)
			if err != nil {
				t.Fatalf("OutcomeFromPrice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("OutcomeFromPrice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutcomeFromPriceErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(m *domain.Market)
		price    int64
		wantCode string
	}{
		{
			name:     "non-positive price",
			mutate:   func(m *domain.Market) {},
			price:    0,
			wantCode: domain.CodeNonPositivePrice,
		},
		{
			name:     "negative price",
			mutate:   func(m *domain.Market) {},
			price:    -5,
			wantCode: domain.CodeNonPositivePrice,
		},
		{
			name:     "non-positive threshold",
			mutate:   func(m *domain.Market) { m.Oracle.Threshold = 0 },
			price:    100,
			wantCode: domain.CodeNonPositiveThreshold,
		},
		{
			name:     "unknown comparator",
			mutate:   func(m *domain.Market) { m.Oracle.Comparator = "between" },
			price:    100,
			wantCode: domain.CodeInvalidComparator,
		},
		{
			name:     "too few outcomes",
			mutate:   func(m *domain.Market) { m.Outcomes = []string{"Yes"} },
			price:    100,
			wantCode: domain.CodeInvalidOutcome,
		},
		{
			name:     "empty derived outcome",
			mutate:   func(m *domain.Market) { m.Outcomes = []string{"Yes", ""} },
			price:    50,
			wantCode: domain.CodeEmptyOutcome,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := priceMarket(domain.CmpGT, 100_000)
			tt.mutate(m)
			_, err := OutcomeFromPrice(m, tt.price)
			if err == nil {
				t.Fatal("OutcomeFromPrice() expected error, got nil")
			}
			if code := domain.CodeOf(err); code != tt.wantCode {
				t.Errorf("OutcomeFromPrice() code = %q, want %q", code, tt.wantCode)
			}
			if !domain.IsKind(err, domain.KindValidation) {
				t.Errorf("OutcomeFromPrice() kind = %v, want validation", err)
			}
		})
	}
}

func TestOracleConfidence(t *testing.T) {
	tests := []struct {
		name      string
		price     int64
		threshold int64
		want      int
	}{
		// 4% deviation: tight band, 80 + 10.
		{"tight deviation above", 104_000, 100_000, 90},
		{"tight deviation below", 96_000, 100_000, 90},
		// 7% deviation: neither band, base 80.
		{"middle deviation", 107_000, 100_000, 80},
		// 15% deviation: wide band, 80 - 20.
		{"wide deviation", 115_000, 100_000, 60},
		// Exactly 5% sits on the tight boundary and gets no bonus.
		{"boundary five percent", 105_000, 100_000, 80},
		// Exactly 10% sits on the wide boundary and gets no penalty.
		{"boundary ten percent", 110_000, 100_000, 80},
		{"exact threshold", 100_000, 100_000, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OracleConfidence(tt.price, tt.threshold); got != tt.want {
				t.Errorf("OracleConfidence(%d, %d) = %d, want %d",
					tt.price, tt.threshold, got, tt.want)
			}
		})
	}
}

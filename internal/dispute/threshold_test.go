package dispute

import (
	"testing"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

var testParams = Params{
	Base:         10_000_000,
	Min:          1_000_000,
	Max:          100_000_000,
	LargeMarket:  1_000_000_000,
	HighActivity: 100,
}

func votes(n int) map[string]string {
	m := make(map[string]string, n)
	for i := 0; i < n; i++ {
		m[string(rune('a'+i%26))+string(rune('0'+i/26))] = "Yes"
	}
	return m
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name   string
		market domain.Market
		want   domain.DisputeThreshold
	}{
		{
			name:   "small quiet market uses base",
			market: domain.Market{ID: "m1", Outcomes: []string{"Yes", "No"}},
			want: domain.DisputeThreshold{
				MarketID: "m1",
				Base:     10_000_000,
				Adjusted: 10_000_000,
			},
		},
		{
			name: "large market adds half of base",
			market: domain.Market{
				ID:          "m2",
				Outcomes:    []string{"Yes", "No"},
				TotalStaked: 1_000_000_001,
			},
			want: domain.DisputeThreshold{
				MarketID:   "m2",
				Base:       10_000_000,
				SizeFactor: 5_000_000,
				Adjusted:   15_000_000,
			},
		},
		{
			name: "all factors stack",
			market: domain.Market{
				ID:          "m3",
				Outcomes:    []string{"A", "B", "C", "D", "E"},
				TotalStaked: 2_000_000_000,
				Votes:       votes(150),
			},
			want: domain.DisputeThreshold{
				MarketID:         "m3",
				Base:             10_000_000,
				SizeFactor:       5_000_000,
				ActivityFactor:   2_500_000,
				ComplexityFactor: 2_000_000,
				Adjusted:         19_500_000,
			},
		},
		{
			name: "cutoffs are strict",
			market: domain.Market{
				ID:          "m4",
				Outcomes:    []string{"Yes", "No", "Maybe"},
				TotalStaked: 1_000_000_000,
				Votes:       votes(100),
			},
			want: domain.DisputeThreshold{
				MarketID: "m4",
				Base:     10_000_000,
				Adjusted: 10_000_000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
			got, err := Compute(testParams, &tt.market, now)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			tt.want.ComputedAt = now
			if got != tt.want {
				t.Errorf("Compute() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeBounds(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		wantCode string
	}{
		{
			name: "adjusted below minimum",
			params: Params{
				Base: 500_000, Min: 1_000_000, Max: 100_000_000,
				LargeMarket: 1_000_000_000, HighActivity: 100,
			},
			wantCode: domain.CodeThresholdBelowMin,
		},
		{
			name: "adjusted above maximum",
			params: Params{
				Base: 200_000_000, Min: 1_000_000, Max: 100_000_000,
				LargeMarket: 1_000_000_000, HighActivity: 100,
			},
			wantCode: domain.CodeThresholdExceedsMax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := domain.Market{ID: "m1", Outcomes: []string{"Yes", "No"}}
			_, err := Compute(tt.params, &m, time.Now())
			if err == nil {
				t.Fatal("Compute() expected error, got nil")
			}
			if code := domain.CodeOf(err); code != tt.wantCode {
				t.Errorf("Compute() code = %q, want %q", code, tt.wantCode)
			}
			if !domain.IsKind(err, domain.KindArithmetic) {
				t.Errorf("Compute() kind = %v, want arithmetic", err)
			}
		})
	}
}

func TestCheckBounds(t *testing.T) {
	p := Params{Min: 1_000_000, Max: 100_000_000}
	if err := p.CheckBounds(1_000_000); err != nil {
		t.Errorf("CheckBounds(min) error = %v", err)
	}
	if err := p.CheckBounds(100_000_000); err != nil {
		t.Errorf("CheckBounds(max) error = %v", err)
	}
	if err := p.CheckBounds(999_999); err == nil {
		t.Error("CheckBounds(below min) expected error, got nil")
	}
	if err := p.CheckBounds(100_000_001); err == nil {
		t.Error("CheckBounds(above max) expected error, got nil")
	}
}

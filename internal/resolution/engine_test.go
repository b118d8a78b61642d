package resolution

import (
	"testing"

	"github.com/hybridmarkets/resolver/internal/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name           string
		oracleOutcome  string
		cons           domain.Consensus
		hybridPct      int
		wantMethod     domain.ResolutionMethod
		wantOutcome    string
		wantConfidence int
	}{
		{
			name:          "strong consensus agreeing with oracle",
			oracleOutcome: "Yes",
			cons:          domain.Consensus{Outcome: "Yes", Percentage: 80},
			hybridPct:     70,
			wantMethod:    domain.MethodHybrid,
			wantOutcome:   "Yes",
			// (85 + 80) / 2
			wantConfidence: 82,
		},
		{
			name:          "strong consensus disagreeing defers to oracle",
			oracleOutcome: "No",
			cons:          domain.Consensus{Outcome: "Yes", Percentage: 90},
			hybridPct:     70,
			wantMethod:    domain.MethodHybrid,
			wantOutcome:   "No",
			wantConfidence: 87,
		},
		{
			name:           "weak consensus falls back to oracle only",
			oracleOutcome:  "Yes",
			cons:           domain.Consensus{Outcome: "No", Percentage: 55},
			hybridPct:      70,
			wantMethod:     domain.MethodOracleOnly,
			wantOutcome:    "Yes",
			wantConfidence: 85,
		},
		{
			name:           "consensus exactly at cutoff is not hybrid",
			oracleOutcome:  "Yes",
			cons:           domain.Consensus{Outcome: "Yes", Percentage: 70},
			hybridPct:      70,
			wantMethod:     domain.MethodOracleOnly,
			wantOutcome:    "Yes",
			wantConfidence: 85,
		},
		{
			name:          "zero cutoff uses the default",
			oracleOutcome: "Yes",
			cons:          domain.Consensus{Outcome: "Yes", Percentage: 75},
			hybridPct:     0,
			wantMethod:    domain.MethodHybrid,
			wantOutcome:   "Yes",
			wantConfidence: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.oracleOutcome, tt.cons, tt.hybridPct)
			if got.Method != tt.wantMethod {
				t.Errorf("Decide() method = %v, want %v", got.Method, tt.wantMethod)
			}
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Decide() outcome = %q, want %q", got.Outcome, tt.wantOutcome)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Decide() confidence = %d, want %d", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestMethodConfidence(t *testing.T) {
	tests := []struct {
		name         string
		method       domain.ResolutionMethod
		consensusPct int
		want         int
	}{
		{"oracle only ignores consensus", domain.MethodOracleOnly, 99, 85},
		{"community tracks consensus", domain.MethodCommunityOnly, 72, 72},
		{"community capped at 90", domain.MethodCommunityOnly, 97, 90},
		{"hybrid averages", domain.MethodHybrid, 79, 82},
		{"hybrid capped at 95", domain.MethodHybrid, 200, 95},
		{"admin override fixed", domain.MethodAdminOverride, 0, 100},
		{"dispute resolution fixed", domain.MethodDisputeResolution, 100, 75},
		{"unknown method scores zero", domain.ResolutionMethod("divination"), 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MethodConfidence(tt.method, tt.consensusPct); got != tt.want {
				t.Errorf("MethodConfidence(%v, %d) = %d, want %d",
					tt.method, tt.consensusPct, got, tt.want)
			}
		})
	}
}

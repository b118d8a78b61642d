package service

import (
	"context"
	"testing"

	"github.com/hybridmarkets/resolver/internal/domain"
)

func TestCalculateThreshold(t *testing.T) {
	f := newFixture()
	svc := f.disputeService()
	f.seed(resolvedMarket("mkt-1"))

	got, err := svc.CalculateThreshold(context.Background(), "mkt-1")
	if err != nil {
		t.Fatalf("CalculateThreshold() error = %v", err)
	}
	// Small pool, two voters, two outcomes: no factor applies.
	if got.Adjusted != f.cfg.Dispute.Base {
		t.Errorf("Adjusted = %d, want base %d", got.Adjusted, f.cfg.Dispute.Base)
	}
	if got.SizeFactor != 0 || got.ActivityFactor != 0 || got.ComplexityFactor != 0 {
		t.Errorf("factors = %d/%d/%d, want 0/0/0",
			got.SizeFactor, got.ActivityFactor, got.ComplexityFactor)
	}
}

func TestCalculateThresholdLargeMarket(t *testing.T) {
	f := newFixture()
	svc := f.disputeService()

	m := resolvedMarket("mkt-1")
	m.TotalStaked = f.cfg.Dispute.LargeMarket + 1
	f.seed(m)

	got, err := svc.CalculateThreshold(context.Background(), "mkt-1")
	if err != nil {
		t.Fatalf("CalculateThreshold() error = %v", err)
	}
	if want := f.cfg.Dispute.Base + f.cfg.Dispute.Base/2; got.Adjusted != want {
		t.Errorf("Adjusted = %d, want %d", got.Adjusted, want)
	}
}

func TestUpdateThreshold(t *testing.T) {
	f := newFixture()
	svc := f.disputeService()
	f.seed(resolvedMarket("mkt-1"))

	entry, err := svc.UpdateThreshold(context.Background(), adminAddr, "mkt-1", 20_000_000, "contested feed")
	if err != nil {
		t.Fatalf("UpdateThreshold() error = %v", err)
	}
	// First override: the recorded old value is the adaptive threshold.
	if entry.OldThreshold != f.cfg.Dispute.Base {
		t.Errorf("OldThreshold = %d, want adaptive %d", entry.OldThreshold, f.cfg.Dispute.Base)
	}
	if entry.NewThreshold != 20_000_000 {
		t.Errorf("NewThreshold = %d, want 20000000", entry.NewThreshold)
	}
	if entry.Seq != 1 {
		t.Errorf("Seq = %d, want 1", entry.Seq)
	}

	// Second override: the old value is the previous override.
	entry, err = svc.UpdateThreshold(context.Background(), adminAddr, "mkt-1", 30_000_000, "still contested")
	if err != nil {
		t.Fatalf("second UpdateThreshold() error = %v", err)
	}
	if entry.OldThreshold != 20_000_000 {
		t.Errorf("OldThreshold = %d, want previous override 20000000", entry.OldThreshold)
	}
	if entry.Seq != 2 {
		t.Errorf("Seq = %d, want 2", entry.Seq)
	}

	if len(f.bus.published[ChannelDispute]) != 2 {
		t.Errorf("dispute channel publishes = %d, want 2", len(f.bus.published[ChannelDispute]))
	}
	if !f.audit.has("threshold.updated") {
		t.Error("threshold.updated audit entry missing")
	}
}

func TestUpdateThresholdRejects(t *testing.T) {
	tests := []struct {
		name     string
		actor    string
		value    int64
		wantCode string
	}{
		{"non-admin actor", aliceAddr, 20_000_000, domain.CodeNotAdmin},
		{"below minimum", adminAddr, 999_999, domain.CodeThresholdBelowMin},
		{"above maximum", adminAddr, 100_000_001, domain.CodeThresholdExceedsMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			svc := f.disputeService()
			f.seed(resolvedMarket("mkt-1"))

			_, err := svc.UpdateThreshold(context.Background(), tt.actor, "mkt-1", tt.value, "")
			if err == nil {
				t.Fatal("UpdateThreshold() expected error, got nil")
			}
			if code := domain.CodeOf(err); code != tt.wantCode {
				t.Errorf("UpdateThreshold() code = %q, want %q", code, tt.wantCode)
			}
			if entries, _ := f.history.List(context.Background(), "mkt-1"); len(entries) != 0 {
				t.Error("rejected override appended to the change log")
			}
		})
	}
}

func TestThresholdHistoryOrder(t *testing.T) {
	f := newFixture()
	svc := f.disputeService()
	f.seed(resolvedMarket("mkt-1"))

	values := []int64{20_000_000, 30_000_000, 15_000_000}
	for _, v := range values {
		if _, err := svc.UpdateThreshold(context.Background(), adminAddr, "mkt-1", v, ""); err != nil {
			t.Fatalf("UpdateThreshold(%d) error = %v", v, err)
		}
	}

	entries, err := svc.History(context.Background(), "mkt-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != len(values) {
		t.Fatalf("History() len = %d, want %d", len(entries), len(values))
	}
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Errorf("entries[%d].Seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.NewThreshold != values[i] {
			t.Errorf("entries[%d].NewThreshold = %d, want %d", i, e.NewThreshold, values[i])
		}
	}
}

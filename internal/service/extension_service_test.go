package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

func TestExtendMarket(t *testing.T) {
	f := newFixture()
	svc := f.extensionService()

	m := activeMarket("mkt-1")
	originalEnd := m.EndTime
	f.seed(m)

	rec, err := svc.ExtendMarket(context.Background(), adminAddr, "mkt-1", 7, "low turnout")
	if err != nil {
		t.Fatalf("ExtendMarket() error = %v", err)
	}
	if rec.Seq != 1 {
		t.Errorf("Seq = %d, want 1", rec.Seq)
	}
	if rec.Fee != 7_000_000 {
		t.Errorf("Fee = %d, want 7000000", rec.Fee)
	}
	if !rec.OldEndTime.Equal(originalEnd) {
		t.Errorf("OldEndTime = %v, want %v", rec.OldEndTime, originalEnd)
	}
	if want := originalEnd.Add(7 * 24 * time.Hour); !rec.NewEndTime.Equal(want) {
		t.Errorf("NewEndTime = %v, want %v", rec.NewEndTime, want)
	}

	if len(f.funds.transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(f.funds.transfers))
	}
	tr := f.funds.transfers[0]
	if tr.from != adminAddr || tr.to != domain.AccountTreasury || tr.amount != 7_000_000 {
		t.Errorf("transfer = %+v, want admin -> treasury of 7000000", tr)
	}

	stored := f.markets.markets["mkt-1"]
	if !stored.EndTime.Equal(rec.NewEndTime) {
		t.Errorf("market end = %v, want %v", stored.EndTime, rec.NewEndTime)
	}
	if stored.TotalExtensionDays != 7 {
		t.Errorf("TotalExtensionDays = %d, want 7", stored.TotalExtensionDays)
	}
	if len(f.bus.published[ChannelExtension]) != 1 {
		t.Errorf("extension channel publishes = %d, want 1", len(f.bus.published[ChannelExtension]))
	}
	if !f.audit.has("market.extended") {
		t.Error("market.extended audit entry missing")
	}
}

func TestExtendMarketCountCap(t *testing.T) {
	f := newFixture()
	svc := f.extensionService()
	f.seed(activeMarket("mkt-1"))

	for i := 0; i < f.cfg.Extension.MaxCount; i++ {
		if _, err := svc.ExtendMarket(context.Background(), adminAddr, "mkt-1", 1, ""); err != nil {
			t.Fatalf("ExtendMarket() #%d error = %v", i+1, err)
		}
	}
	_, err := svc.ExtendMarket(context.Background(), adminAddr, "mkt-1", 1, "")
	if code := domain.CodeOf(err); code != domain.CodeExtensionNotAllowed {
		t.Fatalf("ExtendMarket() past cap code = %q, want %q", code, domain.CodeExtensionNotAllowed)
	}
}

func TestExtendMarketRejects(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(m *domain.Market)
		actor    string
		days     int
		wantCode string
	}{
		{
			name:     "non-admin actor",
			mutate:   func(m *domain.Market) {},
			actor:    aliceAddr, days: 7,
			wantCode: domain.CodeNotAdmin,
		},
		{
			name:     "zero days",
			mutate:   func(m *domain.Market) {},
			actor:    adminAddr, days: 0,
			wantCode: domain.CodeInvalidExtensionDays,
		},
		{
			name:     "above per-extension cap",
			mutate:   func(m *domain.Market) {},
			actor:    adminAddr, days: 31,
			wantCode: domain.CodeExtensionDaysExceeded,
		},
		{
			name:     "budget exhausted",
			mutate:   func(m *domain.Market) { m.TotalExtensionDays = 85 },
			actor:    adminAddr, days: 7,
			wantCode: domain.CodeExtensionDaysExceeded,
		},
		{
			name: "resolved market",
			mutate: func(m *domain.Market) {
				m.Status = domain.MarketStatusResolved
				m.WinningOutcome = "Yes"
			},
			actor: adminAddr, days: 7,
			wantCode: domain.CodeAlreadyResolved,
		},
		{
			name:     "ended market",
			mutate:   func(m *domain.Market) { m.EndTime = fixedNow.Add(-time.Hour) },
			actor:    adminAddr, days: 7,
			wantCode: domain.CodeMarketNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			svc := f.extensionService()

			m := activeMarket("mkt-1")
			tt.mutate(&m)
			f.seed(m)

			_, err := svc.ExtendMarket(context.Background(), tt.actor, "mkt-1", tt.days, "")
			if err == nil {
				t.Fatal("ExtendMarket() expected error, got nil")
			}
			if code := domain.CodeOf(err); code != tt.wantCode {
				t.Errorf("ExtendMarket() code = %q, want %q", code, tt.wantCode)
			}
			if len(f.funds.transfers) != 0 {
				t.Error("rejected extension charged a fee")
			}
			if recs, _ := f.extensions.List(context.Background(), "mkt-1"); len(recs) != 0 {
				t.Error("rejected extension appended to the log")
			}
		})
	}
}

func TestExtendMarketFeeFailureAborts(t *testing.T) {
	f := newFixture()
	svc := f.extensionService()

	m := activeMarket("mkt-1")
	originalEnd := m.EndTime
	f.seed(m)
	f.funds.err = errors.New("ledger down")

	if _, err := svc.ExtendMarket(context.Background(), adminAddr, "mkt-1", 7, ""); err == nil {
		t.Fatal("ExtendMarket() expected error, got nil")
	}
	if !f.markets.markets["mkt-1"].EndTime.Equal(originalEnd) {
		t.Error("end time moved despite failed fee charge")
	}
}

func TestListExtensions(t *testing.T) {
	f := newFixture()
	svc := f.extensionService()
	f.seed(activeMarket("mkt-1"))

	days := []int{2, 3}
	for _, d := range days {
		if _, err := svc.ExtendMarket(context.Background(), adminAddr, "mkt-1", d, ""); err != nil {
			t.Fatalf("ExtendMarket(%d) error = %v", d, err)
		}
	}

	recs, err := svc.ListExtensions(context.Background(), "mkt-1")
	if err != nil {
		t.Fatalf("ListExtensions() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("ListExtensions() len = %d, want 2", len(recs))
	}
	for i, r := range recs {
		if r.Seq != int64(i+1) {
			t.Errorf("recs[%d].Seq = %d, want %d", i, r.Seq, i+1)
		}
		if r.Days != days[i] {
			t.Errorf("recs[%d].Days = %d, want %d", i, r.Days, days[i])
		}
	}
}

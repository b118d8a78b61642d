package domain

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestMarketHelpers(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := Market{
		ID:       "mkt-1",
		Outcomes: []string{"Yes", "No"},
		EndTime:  now.Add(time.Hour),
		Votes: map[string]string{
			"0xaaa": "Yes",
			"0xbbb": "Yes",
			"0xccc": "No",
		},
		Stakes: map[string]int64{
			"0xaaa": 100,
			"0xbbb": 250,
			"0xccc": 400,
		},
	}

	if m.HasEnded(now) {
		t.Error("HasEnded(before end) = true, want false")
	}
	if !m.HasEnded(now.Add(time.Hour)) {
		t.Error("HasEnded(at end) = false, want true")
	}
	if m.IsResolved() {
		t.Error("IsResolved() = true, want false")
	}
	if m.OracleResolved() {
		t.Error("OracleResolved() = true, want false")
	}
	if !m.HasOutcome("No") || m.HasOutcome("Maybe") {
		t.Error("HasOutcome() mismatch")
	}
	if got := m.VoteCount(); got != 3 {
		t.Errorf("VoteCount() = %d, want 3", got)
	}
	if got := m.StakeOnOutcome("Yes"); got != 350 {
		t.Errorf("StakeOnOutcome(Yes) = %d, want 350", got)
	}
	if got := m.StakeOnOutcome("No"); got != 400 {
		t.Errorf("StakeOnOutcome(No) = %d, want 400", got)
	}
}

func TestEnsureMaps(t *testing.T) {
	var m Market
	m.EnsureMaps()
	m.Votes["0xaaa"] = "Yes"
	m.Stakes["0xaaa"] = 10
	m.DisputeStakes["0xaaa"] = 5
	m.Claimed["0xaaa"] = true
}

func TestMarketJSONRoundTrip(t *testing.T) {
	// The cache serializes the whole Market record as JSON; a cached market
	// must re-read field-for-field identical.
	m := Market{
		ID:       "mkt-1",
		Question: "Will BTC close above 100k?",
		Outcomes: []string{"Yes", "No", "Unchanged"},
		EndTime:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Admin:    "0x1111111111111111111111111111111111111111",
		Oracle: OracleConfig{
			Provider:   "binance",
			FeedID:     "BTCUSDT",
			Threshold:  100_000,
			Comparator: CmpGT,
		},
		OracleResult: "Yes",
		Votes: map[string]string{
			"0x2222222222222222222222222222222222222222": "Yes",
			"0x3333333333333333333333333333333333333333": "No",
		},
		Stakes: map[string]int64{
			"0x2222222222222222222222222222222222222222": 1_000_000,
			"0x3333333333333333333333333333333333333333": 4_000_000,
		},
		DisputeStakes: map[string]int64{
			"0x3333333333333333333333333333333333333333": 10_000_000,
		},
		Claimed: map[string]bool{
			"0x2222222222222222222222222222222222222222": true,
		},
		TotalStaked:        5_000_000,
		WinningOutcome:     "Yes",
		FeeCollected:       true,
		TotalExtensionDays: 7,
		MaxExtensionDays:   90,
		Status:             MarketStatusResolved,
		CreatedAt:          time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got Market
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, m)
	}
}

func TestAddresses(t *testing.T) {
	valid := "0x52908400098527886E0F7030069857D2E4169EE7"
	if !ValidAddress(valid) {
		t.Errorf("ValidAddress(%q) = false, want true", valid)
	}
	if ValidAddress("not-an-address") {
		t.Error("ValidAddress(garbage) = true, want false")
	}
	if ValidAddress("") {
		t.Error("ValidAddress(empty) = true, want false")
	}

	lower := "0x52908400098527886e0f7030069857d2e4169ee7"
	if NormalizeAddress(lower) != NormalizeAddress(valid) {
		t.Error("NormalizeAddress() did not canonicalize case variants")
	}
}

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists markets. Updates are whole-record read/modify/write;
// there are no partial-field updates.
type MarketStore interface {
	Create(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	Update(ctx context.Context, market Market) error
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
	// ListEndedUnresolved returns markets whose end time has passed but which
	// have no oracle result yet. Used by the resolver loop.
	ListEndedUnresolved(ctx context.Context, now time.Time, opts ListOpts) ([]Market, error)
	// ListResolvedBefore returns markets resolved before the cutoff. Used by
	// the settled-market archiver.
	ListResolvedBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// BetStore persists bets.
type BetStore interface {
	Create(ctx context.Context, bet Bet) error
	// Get returns the bet a user holds on a market, or ErrNotFound.
	Get(ctx context.Context, marketID, user string) (Bet, error)
	UpdateStatus(ctx context.Context, id string, status BetStatus) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Bet, error)
	// SettleMarket flips every active bet on the market to won or lost
	// depending on whether its outcome matches winningOutcome.
	SettleMarket(ctx context.Context, marketID, winningOutcome string) error
	// RefundMarket flips every active bet on the market to refunded.
	RefundMarket(ctx context.Context, marketID string) error
}

// ResolutionStore persists oracle and market resolution records.
type ResolutionStore interface {
	CreateOracle(ctx context.Context, res OracleResolution) error
	GetOracle(ctx context.Context, marketID string) (OracleResolution, error)
	CreateMarket(ctx context.Context, res MarketResolution) error
	GetMarket(ctx context.Context, marketID string) (MarketResolution, error)
}

// ThresholdHistoryStore persists the append-only dispute threshold log,
// keyed by (market_id, seq).
type ThresholdHistoryStore interface {
	// Append assigns the next sequence number and returns the stored entry.
	Append(ctx context.Context, entry ThresholdHistoryEntry) (ThresholdHistoryEntry, error)
	List(ctx context.Context, marketID string) ([]ThresholdHistoryEntry, error)
}

// ExtensionStore persists the append-only extension log, keyed by
// (market_id, seq).
type ExtensionStore interface {
	Append(ctx context.Context, rec ExtensionRecord) (ExtensionRecord, error)
	List(ctx context.Context, marketID string) ([]ExtensionRecord, error)
	CountByMarket(ctx context.Context, marketID string) (int, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// FundsTransferrer moves value between accounts. The engine only computes
// amounts and delegates movement; every call is bracketed by the service
// layer's reentrancy guard.
type FundsTransferrer interface {
	Transfer(ctx context.Context, from, to string, amount int64) error
}

// Well-known ledger accounts used by the services.
const (
	AccountEscrow   = "escrow"
	AccountTreasury = "treasury"
)

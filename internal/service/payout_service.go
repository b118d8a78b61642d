package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/payout"
)

// PayoutService pays winning participants their fee-adjusted share of a
// resolved market's pool, and collects the platform fee.
type PayoutService struct {
	markets domain.MarketStore
	bets    domain.BetStore
	cache   domain.MarketCache
	locks   domain.LockManager
	bus     domain.SignalBus
	funds   domain.FundsTransferrer
	audit   domain.AuditStore
	guard   *Guard
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewPayoutService creates a PayoutService with all required dependencies.
func NewPayoutService(
	markets domain.MarketStore,
	bets domain.BetStore,
	cache domain.MarketCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	funds domain.FundsTransferrer,
	audit domain.AuditStore,
	guard *Guard,
	cfg Config,
	logger *slog.Logger,
) *PayoutService {
	return &PayoutService{
		markets: markets,
		bets:    bets,
		cache:   cache,
		locks:   locks,
		bus:     bus,
		funds:   funds,
		audit:   audit,
		guard:   guard,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "payout_service")),
		now:     time.Now,
	}
}

// PreviewPayout computes what a user would receive from a resolved market
// without moving funds or marking anything claimed.
func (s *PayoutService) PreviewPayout(ctx context.Context, user, marketID string) (int64, error) {
	if !domain.ValidAddress(user) {
		return 0, domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("user %q is not a valid address", user))
	}
	user = domain.NormalizeAddress(user)

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("payout_service: get %s: %w", marketID, err)
	}
	return payout.Calculate(&m, m.Votes[user], m.Stakes[user], s.cfg.FeePercent)
}

// ClaimPayout pays a user their share of a resolved market exactly once. A
// failed transfer aborts before the claimed flag is persisted. While a
// dispute is open the winning outcome may still change, so claims are frozen
// until re-resolution returns the market to Resolved.
func (s *PayoutService) ClaimPayout(ctx context.Context, user, marketID string) (int64, error) {
	if !domain.ValidAddress(user) {
		return 0, domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("user %q is not a valid address", user))
	}
	user = domain.NormalizeAddress(user)

	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("payout_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("payout_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if m.Status == domain.MarketStatusCancelled {
		return 0, domain.State(domain.CodeMarketCancelled,
			fmt.Sprintf("market %s is cancelled, stakes were refunded", marketID))
	}
	if m.Status == domain.MarketStatusDisputed {
		return 0, domain.State(domain.CodeDisputePending,
			fmt.Sprintf("market %s is under dispute, payouts resume after re-resolution", marketID))
	}
	m.EnsureMaps()
	if m.Claimed[user] {
		return 0, domain.State(domain.CodeAlreadyClaimed,
			fmt.Sprintf("user %s already claimed on market %s", user, marketID))
	}

	amount, err := payout.Calculate(&m, m.Votes[user], m.Stakes[user], s.cfg.FeePercent)
	if err != nil {
		return 0, err
	}

	if amount > 0 {
		release, err := s.guard.Enter(marketID)
		if err != nil {
			return 0, err
		}
		err = s.funds.Transfer(ctx, domain.AccountEscrow, user, amount)
		release()
		if err != nil {
			return 0, fmt.Errorf("payout_service: pay %s: %w", user, err)
		}
	}

	m.Claimed[user] = true
	if err := s.markets.Update(ctx, m); err != nil {
		return 0, fmt.Errorf("payout_service: update %s: %w", marketID, err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "payout.claimed", map[string]any{
		"market_id": marketID,
		"user":      user,
		"amount":    amount,
	})
	publishEvent(ctx, s.bus, s.logger, ChannelPayout, StreamPayout, Event{
		Type:     "payout_claimed",
		MarketID: marketID,
		Actor:    user,
		Detail:   map[string]any{"amount": amount},
		At:       now,
	})
	s.logger.InfoContext(ctx, "payout claimed",
		slog.String("market_id", marketID),
		slog.String("user", user),
		slog.Int64("amount", amount),
	)
	return amount, nil
}

// CollectFee moves the platform fee for a resolved market from escrow to the
// treasury. One-shot per market, guarded by the fee_collected flag.
func (s *PayoutService) CollectFee(ctx context.Context, marketID string) (int64, error) {
	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("payout_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("payout_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if !m.IsResolved() {
		return 0, domain.State(domain.CodeNoOracleResult,
			fmt.Sprintf("market %s has no winning outcome yet", marketID))
	}
	if m.FeeCollected {
		return 0, domain.State(domain.CodeFeeAlreadyCollected,
			fmt.Sprintf("fee for market %s was already collected", marketID))
	}

	fee := payout.Fee(m.TotalStaked, s.cfg.FeePercent)
	if fee > 0 {
		release, err := s.guard.Enter(marketID)
		if err != nil {
			return 0, err
		}
		err = s.funds.Transfer(ctx, domain.AccountEscrow, domain.AccountTreasury, fee)
		release()
		if err != nil {
			return 0, fmt.Errorf("payout_service: collect fee: %w", err)
		}
	}

	m.FeeCollected = true
	if err := s.markets.Update(ctx, m); err != nil {
		return 0, fmt.Errorf("payout_service: update %s: %w", marketID, err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "fee.collected", map[string]any{
		"market_id": marketID,
		"fee":       fee,
	})
	publishEvent(ctx, s.bus, s.logger, ChannelPayout, StreamPayout, Event{
		Type:     "fee_collected",
		MarketID: marketID,
		Detail:   map[string]any{"fee": fee},
		At:       now,
	})
	return fee, nil
}

func (s *PayoutService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PayoutService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

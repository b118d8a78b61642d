package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hybridmarkets/resolver/internal/dispute"
	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/oracle"
	"github.com/hybridmarkets/resolver/internal/resolution"
)

// ResolutionService drives a market through the resolution lifecycle: oracle
// fetch, hybrid decision, admin override, dispute, and cancellation. Every
// mutation runs under the per-market lock; validation precedes any write.
type ResolutionService struct {
	markets     domain.MarketStore
	bets        domain.BetStore
	resolutions domain.ResolutionStore
	history     domain.ThresholdHistoryStore
	cache       domain.MarketCache
	locks       domain.LockManager
	bus         domain.SignalBus
	funds       domain.FundsTransferrer
	audit       domain.AuditStore
	guard       *Guard
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time
}

// NewResolutionService creates a ResolutionService with all required
// dependencies.
func NewResolutionService(
	markets domain.MarketStore,
	bets domain.BetStore,
	resolutions domain.ResolutionStore,
	history domain.ThresholdHistoryStore,
	cache domain.MarketCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	funds domain.FundsTransferrer,
	audit domain.AuditStore,
	guard *Guard,
	cfg Config,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		markets:     markets,
		bets:        bets,
		resolutions: resolutions,
		history:     history,
		cache:       cache,
		locks:       locks,
		bus:         bus,
		funds:       funds,
		audit:       audit,
		guard:       guard,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "resolution_service")),
		now:         time.Now,
	}
}

// FetchOracleResult pulls the current price for the market's feed, converts
// it into a categorical outcome, and records it. The oracle result is written
// exactly once per market.
func (s *ResolutionService) FetchOracleResult(ctx context.Context, marketID string) (domain.OracleResolution, error) {
	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return domain.OracleResolution{}, fmt.Errorf("resolution_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return domain.OracleResolution{}, fmt.Errorf("resolution_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if m.Status == domain.MarketStatusCancelled {
		return domain.OracleResolution{}, domain.State(domain.CodeMarketCancelled,
			fmt.Sprintf("market %s is cancelled", marketID))
	}
	if m.OracleResolved() {
		return domain.OracleResolution{}, domain.State(domain.CodeAlreadyResolved,
			fmt.Sprintf("market %s already has an oracle result", marketID))
	}
	if !m.HasEnded(now) {
		return domain.OracleResolution{}, domain.State(domain.CodeNotYetClosed,
			fmt.Sprintf("market %s has not closed yet", marketID))
	}

	provider, err := oracle.New(m.Oracle.Provider, s.cfg.Oracle)
	if err != nil {
		return domain.OracleResolution{}, err
	}

	release, err := s.guard.Enter(marketID)
	if err != nil {
		return domain.OracleResolution{}, err
	}
	price, err := provider.GetPrice(ctx, m.Oracle.FeedID)
	release()
	if err != nil {
		if errors.Is(err, oracle.ErrUnavailable) {
			return domain.OracleResolution{}, domain.Resource(domain.CodeOracleUnavailable,
				fmt.Sprintf("provider %s could not price feed %s", provider.Name(), m.Oracle.FeedID), err)
		}
		return domain.OracleResolution{}, fmt.Errorf("resolution_service: fetch price: %w", err)
	}

	outcome, err := resolution.OutcomeFromPrice(&m, price)
	if err != nil {
		return domain.OracleResolution{}, err
	}

	res := domain.OracleResolution{
		MarketID:   marketID,
		Outcome:    outcome,
		Price:      price,
		Threshold:  m.Oracle.Threshold,
		Comparator: m.Oracle.Comparator,
		Provider:   provider.Name(),
		FeedID:     m.Oracle.FeedID,
		Confidence: resolution.OracleConfidence(price, m.Oracle.Threshold),
		ResolvedAt: now,
	}
	if err := s.resolutions.CreateOracle(ctx, res); err != nil {
		return domain.OracleResolution{}, fmt.Errorf("resolution_service: record oracle result: %w", err)
	}

	m.OracleResult = outcome
	if err := s.markets.Update(ctx, m); err != nil {
		return domain.OracleResolution{}, fmt.Errorf("resolution_service: update %s: %w", marketID, err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "oracle.resolved", map[string]any{
		"market_id":  marketID,
		"outcome":    outcome,
		"price":      price,
		"confidence": res.Confidence,
	})
	publishEvent(ctx, s.bus, s.logger, ChannelResolution, StreamResolution, Event{
		Type:     "oracle_result",
		MarketID: marketID,
		Detail:   map[string]any{"outcome": outcome, "price": price, "confidence": res.Confidence},
		At:       now,
	})
	s.logger.InfoContext(ctx, "oracle result recorded",
		slog.String("market_id", marketID),
		slog.String("outcome", outcome),
		slog.Int64("price", price),
	)
	return res, nil
}

// ResolveMarket combines the oracle outcome with community consensus into a
// final outcome and settles every bet. A market in Disputed state may be
// re-resolved; the resolution method is then DisputeResolution.
func (s *ResolutionService) ResolveMarket(ctx context.Context, marketID string) (domain.MarketResolution, error) {
	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if m.Status == domain.MarketStatusCancelled {
		return domain.MarketResolution{}, domain.State(domain.CodeMarketCancelled,
			fmt.Sprintf("market %s is cancelled", marketID))
	}
	redisputed := m.Status == domain.MarketStatusDisputed && m.IsResolved()
	if m.IsResolved() && !redisputed {
		return domain.MarketResolution{}, domain.State(domain.CodeAlreadyResolved,
			fmt.Sprintf("market %s is already resolved", marketID))
	}
	if !m.HasEnded(now) {
		return domain.MarketResolution{}, domain.State(domain.CodeNotYetClosed,
			fmt.Sprintf("market %s has not closed yet", marketID))
	}
	if !m.OracleResolved() {
		return domain.MarketResolution{}, domain.State(domain.CodeNoOracleResult,
			fmt.Sprintf("market %s has no oracle result", marketID))
	}

	cons := resolution.CalculateConsensus(&m)
	dec := resolution.Decide(m.OracleResult, cons, s.cfg.HybridConsensusPct)
	if redisputed {
		dec.Method = domain.MethodDisputeResolution
		dec.Confidence = resolution.MethodConfidence(dec.Method, cons.Percentage)
	}

	res := domain.MarketResolution{
		ID:            uuid.New().String(),
		MarketID:      marketID,
		Outcome:       dec.Outcome,
		OracleOutcome: m.OracleResult,
		Consensus:     cons,
		Method:        dec.Method,
		Confidence:    dec.Confidence,
		ResolvedAt:    now,
	}
	if err := s.resolutions.CreateMarket(ctx, res); err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: record resolution: %w", err)
	}

	m.WinningOutcome = dec.Outcome
	m.Status = domain.MarketStatusResolved
	if err := s.markets.Update(ctx, m); err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: update %s: %w", marketID, err)
	}
	if err := s.bets.SettleMarket(ctx, marketID, dec.Outcome); err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: settle bets: %w", err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "market.resolved", map[string]any{
		"market_id":  marketID,
		"outcome":    dec.Outcome,
		"method":     string(dec.Method),
		"confidence": dec.Confidence,
	})
	publishEvent(ctx, s.bus, s.logger, ChannelResolution, StreamResolution, Event{
		Type:     "market_resolved",
		MarketID: marketID,
		Detail: map[string]any{
			"outcome":    dec.Outcome,
			"method":     string(dec.Method),
			"confidence": dec.Confidence,
			"consensus":  cons.Percentage,
		},
		At: now,
	})
	s.logger.InfoContext(ctx, "market resolved",
		slog.String("market_id", marketID),
		slog.String("outcome", dec.Outcome),
		slog.String("method", string(dec.Method)),
		slog.Int("confidence", dec.Confidence),
	)
	return res, nil
}

// FinalizeMarket lets the market's admin set the final outcome directly.
// Method is AdminOverride with full confidence.
func (s *ResolutionService) FinalizeMarket(ctx context.Context, actor, marketID, outcome string) (domain.MarketResolution, error) {
	if !domain.ValidAddress(actor) {
		return domain.MarketResolution{}, domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("actor %q is not a valid address", actor))
	}
	actor = domain.NormalizeAddress(actor)

	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if m.Status == domain.MarketStatusCancelled {
		return domain.MarketResolution{}, domain.State(domain.CodeMarketCancelled,
			fmt.Sprintf("market %s is cancelled", marketID))
	}
	if m.Status == domain.MarketStatusResolved {
		return domain.MarketResolution{}, domain.State(domain.CodeAlreadyResolved,
			fmt.Sprintf("market %s is already resolved", marketID))
	}
	if !m.HasEnded(now) {
		return domain.MarketResolution{}, domain.State(domain.CodeNotYetClosed,
			fmt.Sprintf("market %s has not closed yet", marketID))
	}
	if actor != m.Admin {
		return domain.MarketResolution{}, domain.Authorization(domain.CodeNotAdmin,
			fmt.Sprintf("actor %s does not administer market %s", actor, marketID))
	}
	if !m.HasOutcome(outcome) {
		return domain.MarketResolution{}, domain.Validation(domain.CodeInvalidOutcome,
			fmt.Sprintf("market %s has no outcome %q", marketID, outcome))
	}

	cons := resolution.CalculateConsensus(&m)
	res := domain.MarketResolution{
		ID:            uuid.New().String(),
		MarketID:      marketID,
		Outcome:       outcome,
		OracleOutcome: m.OracleResult,
		Consensus:     cons,
		Method:        domain.MethodAdminOverride,
		Confidence:    resolution.MethodConfidence(domain.MethodAdminOverride, cons.Percentage),
		ResolvedAt:    now,
	}
	if err := s.resolutions.CreateMarket(ctx, res); err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: record resolution: %w", err)
	}

	m.WinningOutcome = outcome
	m.Status = domain.MarketStatusResolved
	if err := s.markets.Update(ctx, m); err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: update %s: %w", marketID, err)
	}
	if err := s.bets.SettleMarket(ctx, marketID, outcome); err != nil {
		return domain.MarketResolution{}, fmt.Errorf("resolution_service: settle bets: %w", err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "market.finalized", map[string]any{
		"market_id": marketID,
		"actor":     actor,
		"outcome":   outcome,
	})
	publishEvent(ctx, s.bus, s.logger, ChannelResolution, StreamResolution, Event{
		Type:     "market_finalized",
		MarketID: marketID,
		Actor:    actor,
		Detail:   map[string]any{"outcome": outcome},
		At:       now,
	})
	return res, nil
}

// RaiseDispute contests a resolved market. The stake must meet the effective
// dispute threshold (the latest manual override, or the adaptive computation
// when none exists), is escrowed, and the voting window reopens for the
// dispute extension period.
func (s *ResolutionService) RaiseDispute(ctx context.Context, user, marketID string, stake int64) error {
	if !domain.ValidAddress(user) {
		return domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("user %q is not a valid address", user))
	}
	user = domain.NormalizeAddress(user)

	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("resolution_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return fmt.Errorf("resolution_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if m.Status == domain.MarketStatusCancelled {
		return domain.State(domain.CodeMarketCancelled,
			fmt.Sprintf("market %s is cancelled", marketID))
	}
	if m.Status != domain.MarketStatusResolved || !m.IsResolved() {
		return domain.State(domain.CodeNoOracleResult,
			fmt.Sprintf("market %s has no resolution to dispute", marketID))
	}

	threshold, err := s.effectiveThreshold(ctx, &m, now)
	if err != nil {
		return err
	}
	if stake < threshold {
		return domain.Validation(domain.CodeStakeBelowThreshold,
			fmt.Sprintf("dispute stake %d below threshold %d", stake, threshold))
	}

	release, err := s.guard.Enter(marketID)
	if err != nil {
		return err
	}
	err = s.funds.Transfer(ctx, user, domain.AccountEscrow, stake)
	release()
	if err != nil {
		return fmt.Errorf("resolution_service: escrow dispute stake: %w", err)
	}

	m.EnsureMaps()
	m.DisputeStakes[user] += stake
	m.Status = domain.MarketStatusDisputed
	m.EndTime = now.Add(s.cfg.DisputeExtension)
	if err := s.markets.Update(ctx, m); err != nil {
		return fmt.Errorf("resolution_service: update %s: %w", marketID, err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "dispute.raised", map[string]any{
		"market_id": marketID,
		"user":      user,
		"stake":     stake,
		"threshold": threshold,
	})
	publishEvent(ctx, s.bus, s.logger, ChannelDispute, StreamDispute, Event{
		Type:     "dispute_raised",
		MarketID: marketID,
		Actor:    user,
		Detail:   map[string]any{"stake": stake, "threshold": threshold},
		At:       now,
	})
	s.logger.InfoContext(ctx, "dispute raised",
		slog.String("market_id", marketID),
		slog.String("user", user),
		slog.Int64("stake", stake),
	)
	return nil
}

// CancelMarket voids an active market: every active bet is refunded through
// the ledger and the market becomes Cancelled. Only the admin may cancel, and
// only from the Active state.
func (s *ResolutionService) CancelMarket(ctx context.Context, actor, marketID string) error {
	if !domain.ValidAddress(actor) {
		return domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("actor %q is not a valid address", actor))
	}
	actor = domain.NormalizeAddress(actor)

	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("resolution_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return fmt.Errorf("resolution_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if m.Status != domain.MarketStatusActive {
		return domain.State(domain.CodeMarketNotActive,
			fmt.Sprintf("market %s is %s, only active markets cancel", marketID, m.Status))
	}
	if actor != m.Admin {
		return domain.Authorization(domain.CodeNotAdmin,
			fmt.Sprintf("actor %s does not administer market %s", actor, marketID))
	}

	release, err := s.guard.Enter(marketID)
	if err != nil {
		return err
	}
	for user, amount := range m.Stakes {
		if amount <= 0 {
			continue
		}
		if err := s.funds.Transfer(ctx, domain.AccountEscrow, user, amount); err != nil {
			release()
			return fmt.Errorf("resolution_service: refund %s: %w", user, err)
		}
	}
	release()

	if err := s.bets.RefundMarket(ctx, marketID); err != nil {
		return fmt.Errorf("resolution_service: refund bets: %w", err)
	}

	m.Status = domain.MarketStatusCancelled
	if err := s.markets.Update(ctx, m); err != nil {
		return fmt.Errorf("resolution_service: update %s: %w", marketID, err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "market.cancelled", map[string]any{
		"market_id": marketID,
		"actor":     actor,
		"refunded":  len(m.Stakes),
	})
	publishEvent(ctx, s.bus, s.logger, ChannelResolution, StreamResolution, Event{
		Type:     "market_cancelled",
		MarketID: marketID,
		Actor:    actor,
		At:       now,
	})
	return nil
}

// effectiveThreshold returns the latest manual threshold override for the
// market, or the adaptive computation when the change log is empty.
func (s *ResolutionService) effectiveThreshold(ctx context.Context, m *domain.Market, now time.Time) (int64, error) {
	entries, err := s.history.List(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("resolution_service: threshold history %s: %w", m.ID, err)
	}
	if len(entries) > 0 {
		return entries[len(entries)-1].NewThreshold, nil
	}

	t, err := dispute.Compute(s.cfg.Dispute, m, now)
	if err != nil {
		return 0, err
	}
	return t.Adjusted, nil
}

func (s *ResolutionService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ResolutionService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

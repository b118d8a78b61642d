package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/extension"
)

// ExtensionService extends a market's voting window for a per-day fee.
type ExtensionService struct {
	markets    domain.MarketStore
	extensions domain.ExtensionStore
	cache      domain.MarketCache
	locks      domain.LockManager
	bus        domain.SignalBus
	funds      domain.FundsTransferrer
	audit      domain.AuditStore
	guard      *Guard
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewExtensionService creates an ExtensionService with all required
// dependencies.
func NewExtensionService(
	markets domain.MarketStore,
	extensions domain.ExtensionStore,
	cache domain.MarketCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	funds domain.FundsTransferrer,
	audit domain.AuditStore,
	guard *Guard,
	cfg Config,
	logger *slog.Logger,
) *ExtensionService {
	return &ExtensionService{
		markets:    markets,
		extensions: extensions,
		cache:      cache,
		locks:      locks,
		bus:        bus,
		funds:      funds,
		audit:      audit,
		guard:      guard,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "extension_service")),
		now:        time.Now,
	}
}

// ExtendMarket moves the market's end time forward by the given day count.
// Every check runs before any write; the fee is charged to the actor and the
// extension appended to the per-market log.
func (s *ExtensionService) ExtendMarket(ctx context.Context, actor, marketID string, days int, reason string) (domain.ExtensionRecord, error) {
	if !domain.ValidAddress(actor) {
		return domain.ExtensionRecord{}, domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("actor %q is not a valid address", actor))
	}
	actor = domain.NormalizeAddress(actor)

	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("extension_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("extension_service: get %s: %w", marketID, err)
	}

	now := s.now()
	count, err := s.extensions.CountByMarket(ctx, marketID)
	if err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("extension_service: count %s: %w", marketID, err)
	}
	if err := extension.Validate(s.cfg.Extension, &m, actor, days, count, now); err != nil {
		return domain.ExtensionRecord{}, err
	}

	fee := extension.Fee(s.cfg.Extension, days)
	if fee > 0 {
		release, err := s.guard.Enter(marketID)
		if err != nil {
			return domain.ExtensionRecord{}, err
		}
		err = s.funds.Transfer(ctx, actor, domain.AccountTreasury, fee)
		release()
		if err != nil {
			return domain.ExtensionRecord{}, fmt.Errorf("extension_service: charge fee: %w", err)
		}
	}

	oldEnd, newEnd := extension.Apply(&m, days)
	if err := s.markets.Update(ctx, m); err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("extension_service: update %s: %w", marketID, err)
	}

	rec, err := s.extensions.Append(ctx, domain.ExtensionRecord{
		MarketID:   marketID,
		Days:       days,
		Fee:        fee,
		Reason:     reason,
		Actor:      actor,
		OldEndTime: oldEnd,
		NewEndTime: newEnd,
	})
	if err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("extension_service: append record: %w", err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "market.extended", map[string]any{
		"market_id": marketID,
		"actor":     actor,
		"days":      days,
		"fee":       fee,
	})
	publishEvent(ctx, s.bus, s.logger, ChannelExtension, StreamExtension, Event{
		Type:     "market_extended",
		MarketID: marketID,
		Actor:    actor,
		Detail:   map[string]any{"days": days, "fee": fee, "new_end_time": newEnd},
		At:       now,
	})
	s.logger.InfoContext(ctx, "market extended",
		slog.String("market_id", marketID),
		slog.Int("days", days),
		slog.Int64("fee", fee),
	)
	return rec, nil
}

// ListExtensions returns the market's extension log in sequence order.
func (s *ExtensionService) ListExtensions(ctx context.Context, marketID string) ([]domain.ExtensionRecord, error) {
	recs, err := s.extensions.List(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("extension_service: list %s: %w", marketID, err)
	}
	return recs, nil
}

func (s *ExtensionService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ExtensionService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

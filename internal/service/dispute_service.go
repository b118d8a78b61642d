package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hybridmarkets/resolver/internal/dispute"
	"github.com/hybridmarkets/resolver/internal/domain"
)

// DisputeService computes and manages per-market dispute thresholds.
type DisputeService struct {
	markets domain.MarketStore
	history domain.ThresholdHistoryStore
	locks   domain.LockManager
	bus     domain.SignalBus
	audit   domain.AuditStore
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewDisputeService creates a DisputeService with all required dependencies.
func NewDisputeService(
	markets domain.MarketStore,
	history domain.ThresholdHistoryStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cfg Config,
	logger *slog.Logger,
) *DisputeService {
	return &DisputeService{
		markets: markets,
		history: history,
		locks:   locks,
		bus:     bus,
		audit:   audit,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "dispute_service")),
		now:     time.Now,
	}
}

// CalculateThreshold derives the adaptive dispute threshold for a market from
// its size, activity, and outcome count. Read-only; nothing is persisted.
func (s *DisputeService) CalculateThreshold(ctx context.Context, marketID string) (domain.DisputeThreshold, error) {
	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return domain.DisputeThreshold{}, fmt.Errorf("dispute_service: get %s: %w", marketID, err)
	}
	return dispute.Compute(s.cfg.Dispute, &m, s.now())
}

// UpdateThreshold sets a manual threshold override for the market and appends
// it to the change log. The value is bounds-checked before any write; the old
// value recorded is the previous override, or the adaptive value when the log
// is empty.
func (s *DisputeService) UpdateThreshold(ctx context.Context, actor, marketID string, value int64, reason string) (domain.ThresholdHistoryEntry, error) {
	if !domain.ValidAddress(actor) {
		return domain.ThresholdHistoryEntry{}, domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("actor %q is not a valid address", actor))
	}
	actor = domain.NormalizeAddress(actor)

	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return domain.ThresholdHistoryEntry{}, fmt.Errorf("dispute_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return domain.ThresholdHistoryEntry{}, fmt.Errorf("dispute_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if actor != m.Admin {
		return domain.ThresholdHistoryEntry{}, domain.Authorization(domain.CodeNotAdmin,
			fmt.Sprintf("actor %s does not administer market %s", actor, marketID))
	}
	if err := s.cfg.Dispute.CheckBounds(value); err != nil {
		return domain.ThresholdHistoryEntry{}, err
	}

	old, err := s.currentThreshold(ctx, &m, now)
	if err != nil {
		return domain.ThresholdHistoryEntry{}, err
	}

	entry, err := s.history.Append(ctx, domain.ThresholdHistoryEntry{
		MarketID:     marketID,
		OldThreshold: old,
		NewThreshold: value,
		Reason:       reason,
		Actor:        actor,
	})
	if err != nil {
		return domain.ThresholdHistoryEntry{}, fmt.Errorf("dispute_service: append history: %w", err)
	}

	s.logAudit(ctx, "threshold.updated", map[string]any{
		"market_id": marketID,
		"actor":     actor,
		"old":       old,
		"new":       value,
		"reason":    reason,
	})
	publishEvent(ctx, s.bus, s.logger, ChannelDispute, StreamDispute, Event{
		Type:     "threshold_updated",
		MarketID: marketID,
		Actor:    actor,
		Detail:   map[string]any{"old": old, "new": value, "reason": reason},
		At:       now,
	})
	return entry, nil
}

// History returns the market's threshold change log in sequence order.
func (s *DisputeService) History(ctx context.Context, marketID string) ([]domain.ThresholdHistoryEntry, error) {
	entries, err := s.history.List(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("dispute_service: history %s: %w", marketID, err)
	}
	return entries, nil
}

func (s *DisputeService) currentThreshold(ctx context.Context, m *domain.Market, now time.Time) (int64, error) {
	entries, err := s.history.List(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("dispute_service: history %s: %w", m.ID, err)
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

func (s *DisputeService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

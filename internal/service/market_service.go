package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/oracle"
)

// MarketService handles market creation, lookup, and participation.
type MarketService struct {
	markets domain.MarketStore
	bets    domain.BetStore
	cache   domain.MarketCache
	locks   domain.LockManager
	funds   domain.FundsTransferrer
	audit   domain.AuditStore
	guard   *Guard
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	bets domain.BetStore,
	cache domain.MarketCache,
	locks domain.LockManager,
	funds domain.FundsTransferrer,
	audit domain.AuditStore,
	guard *Guard,
	cfg Config,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		bets:    bets,
		cache:   cache,
		locks:   locks,
		funds:   funds,
		audit:   audit,
		guard:   guard,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "market_service")),
		now:     time.Now,
	}
}

// CreateMarket validates and persists a new market. The market's ID is
// assigned when absent, the admin address is normalized, and the per-market
// extension budget defaults from config when unset.
func (s *MarketService) CreateMarket(ctx context.Context, m domain.Market) (domain.Market, error) {
	now := s.now()

	if !domain.ValidAddress(m.Admin) {
		return domain.Market{}, domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("admin %q is not a valid address", m.Admin))
	}
	if len(m.Outcomes) < 2 {
		return domain.Market{}, domain.Validation(domain.CodeInvalidOutcome,
			fmt.Sprintf("market declares %d outcomes, need at least 2", len(m.Outcomes)))
	}
	if len(m.Outcomes) > s.cfg.MaxOutcomes {
		return domain.Market{}, domain.Validation(domain.CodeInvalidOutcome,
			fmt.Sprintf("market declares %d outcomes, maximum is %d", len(m.Outcomes), s.cfg.MaxOutcomes))
	}
	seen := make(map[string]bool, len(m.Outcomes))
	for _, o := range m.Outcomes {
		if o == "" {
			return domain.Market{}, domain.Validation(domain.CodeEmptyOutcome, "outcome labels must be non-empty")
		}
		if seen[o] {
			return domain.Market{}, domain.Validation(domain.CodeInvalidOutcome,
				fmt.Sprintf("duplicate outcome label %q", o))
		}
		seen[o] = true
	}
	if !m.EndTime.After(now) {
		return domain.Market{}, domain.Validation(domain.CodeNotYetClosed,
			"market end time must be in the future")
	}
	if m.Oracle.Threshold <= 0 {
		return domain.Market{}, domain.Validation(domain.CodeNonPositiveThreshold,
			fmt.Sprintf("oracle threshold must be positive, got %d", m.Oracle.Threshold))
	}
	if !m.Oracle.Comparator.Valid() {
		return domain.Market{}, domain.Validation(domain.CodeInvalidComparator,
			fmt.Sprintf("unknown comparator %q", m.Oracle.Comparator))
	}
	if _, err := oracle.New(m.Oracle.Provider, s.cfg.Oracle); err != nil {
		return domain.Market{}, err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Admin = domain.NormalizeAddress(m.Admin)
	if m.MaxExtensionDays == 0 {
		m.MaxExtensionDays = s.cfg.DefaultMaxExtensionDays
	}
	m.Status = domain.MarketStatusActive
	m.CreatedAt = now
	m.EnsureMaps()

	if err := s.markets.Create(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create %s: %w", m.ID, err)
	}

	s.logAudit(ctx, "market.created", map[string]any{
		"market_id": m.ID,
		"admin":     m.Admin,
		"outcomes":  len(m.Outcomes),
	})
	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", m.ID),
		slog.Int("outcomes", len(m.Outcomes)),
	)
	return m, nil
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the persistent store on a cache miss.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}

	m, err = s.markets.Get(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// ListActive returns active markets directly from the persistent store.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active: %w", err)
	}
	return markets, nil
}

// PlaceBet records a participant's vote and stake on an outcome. One position
// per address per market; the stake moves to escrow before the ledger write.
func (s *MarketService) PlaceBet(ctx context.Context, user, marketID, outcome string, amount int64) (domain.Bet, error) {
	if !domain.ValidAddress(user) {
		return domain.Bet{}, domain.Validation(domain.CodeInvalidAddress,
			fmt.Sprintf("user %q is not a valid address", user))
	}
	user = domain.NormalizeAddress(user)

	unlock, err := s.locks.Acquire(ctx, marketID, s.cfg.LockTTL)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: lock %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: get %s: %w", marketID, err)
	}

	now := s.now()
	if m.Status != domain.MarketStatusActive {
		return domain.Bet{}, domain.State(domain.CodeMarketNotActive,
			fmt.Sprintf("market %s is %s", marketID, m.Status))
	}
	if m.HasEnded(now) {
		return domain.Bet{}, domain.State(domain.CodeMarketNotActive,
			fmt.Sprintf("market %s voting window has closed", marketID))
	}
	if !m.HasOutcome(outcome) {
		return domain.Bet{}, domain.Validation(domain.CodeInvalidOutcome,
			fmt.Sprintf("market %s has no outcome %q", marketID, outcome))
	}
	if amount <= 0 {
		return domain.Bet{}, domain.Validation(domain.CodeInvalidOutcome,
			fmt.Sprintf("stake must be positive, got %d", amount))
	}
	m.EnsureMaps()
	if _, voted := m.Votes[user]; voted {
		return domain.Bet{}, fmt.Errorf("market_service: bet for %s on %s: %w", user, marketID, domain.ErrAlreadyExists)
	}

	release, err := s.guard.Enter(marketID)
	if err != nil {
		return domain.Bet{}, err
	}
	err = s.funds.Transfer(ctx, user, domain.AccountEscrow, amount)
	release()
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: escrow stake: %w", err)
	}

	bet := domain.Bet{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		User:      user,
		Outcome:   outcome,
		Amount:    amount,
		Status:    domain.BetStatusActive,
		CreatedAt: now,
	}
	if err := s.bets.Create(ctx, bet); err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: create bet: %w", err)
	}

	m.Votes[user] = outcome
	m.Stakes[user] = amount
	m.TotalStaked += amount
	if err := s.markets.Update(ctx, m); err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: update %s: %w", marketID, err)
	}
	s.invalidate(ctx, marketID)

	s.logAudit(ctx, "bet.placed", map[string]any{
		"market_id": marketID,
		"user":      user,
		"outcome":   outcome,
		"amount":    amount,
	})
	return bet, nil
}

func (s *MarketService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hybridmarkets/resolver/internal/dispute"
	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/extension"
	"github.com/hybridmarkets/resolver/internal/oracle"
)

// Test addresses. All-digit hex so the checksummed form equals the input and
// map keys stay readable.
const (
	adminAddr = "0x1111111111111111111111111111111111111111"
	aliceAddr = "0x2222222222222222222222222222222222222222"
	bobAddr   = "0x3333333333333333333333333333333333333333"
	carolAddr = "0x4444444444444444444444444444444444444444"
)

var fixedNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		FeePercent:         2,
		MaxOutcomes:        10,
		HybridConsensusPct: 70,
		Dispute: dispute.Params{
			Base:         10_000_000,
			Min:          1_000_000,
			Max:          100_000_000,
			LargeMarket:  1_000_000_000,
			HighActivity: 100,
		},
		Extension: extension.Params{
			MinDays:   1,
			MaxDays:   30,
			MaxCount:  3,
			FeePerDay: 1_000_000,
		},
		DefaultMaxExtensionDays: 90,
		DisputeExtension:        24 * time.Hour,
		LockTTL:                 30 * time.Second,
		Oracle: oracle.Config{
			BinanceBaseURL:   "https://api.binance.com",
			CoinGeckoBaseURL: "https://api.coingecko.com",
			Timeout:          time.Second,
			PriceScale:       1,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memMarketStore keeps markets in a map and counts reads and writes.
type memMarketStore struct {
	markets map[string]domain.Market
	gets    int
	updates int
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[string]domain.Market)}
}

func (s *memMarketStore) Create(_ context.Context, m domain.Market) error {
	if _, ok := s.markets[m.ID]; ok {
		return fmt.Errorf("market %s: %w", m.ID, domain.ErrAlreadyExists)
	}
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) Get(_ context.Context, id string) (domain.Market, error) {
	s.gets++
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("market %s: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

func (s *memMarketStore) Update(_ context.Context, m domain.Market) error {
	if _, ok := s.markets[m.ID]; !ok {
		return fmt.Errorf("market %s: %w", m.ID, domain.ErrNotFound)
	}
	s.updates++
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) ListActive(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == domain.MarketStatusActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMarketStore) ListEndedUnresolved(_ context.Context, now time.Time, _ domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.markets {
		if m.HasEnded(now) && !m.OracleResolved() && m.Status == domain.MarketStatusActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMarketStore) ListResolvedBefore(_ context.Context, _ time.Time, _ domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

func (s *memMarketStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

// memBetStore records bets and remembers settlement calls.
type memBetStore struct {
	bets        []domain.Bet
	settledWith string
	refunded    bool
}

func (s *memBetStore) Create(_ context.Context, b domain.Bet) error {
	s.bets = append(s.bets, b)
	return nil
}

func (s *memBetStore) Get(_ context.Context, marketID, user string) (domain.Bet, error) {
	for _, b := range s.bets {
		if b.MarketID == marketID && b.User == user {
			return b, nil
		}
	}
	return domain.Bet{}, fmt.Errorf("bet for %s on %s: %w", user, marketID, domain.ErrNotFound)
}

func (s *memBetStore) UpdateStatus(_ context.Context, id string, status domain.BetStatus) error {
	for i := range s.bets {
		if s.bets[i].ID == id {
			s.bets[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("bet %s: %w", id, domain.ErrNotFound)
}

func (s *memBetStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range s.bets {
		if b.MarketID == marketID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memBetStore) SettleMarket(_ context.Context, marketID, winningOutcome string) error {
	s.settledWith = winningOutcome
	for i := range s.bets {
		if s.bets[i].MarketID != marketID || s.bets[i].Status != domain.BetStatusActive {
			continue
		}
		if s.bets[i].Outcome == winningOutcome {
			s.bets[i].Status = domain.BetStatusWon
		} else {
			s.bets[i].Status = domain.BetStatusLost
		}
	}
	return nil
}

func (s *memBetStore) RefundMarket(_ context.Context, marketID string) error {
	s.refunded = true
	for i := range s.bets {
		if s.bets[i].MarketID == marketID && s.bets[i].Status == domain.BetStatusActive {
			s.bets[i].Status = domain.BetStatusRefunded
		}
	}
	return nil
}

// memResolutionStore keeps resolution records by market.
type memResolutionStore struct {
	oracles map[string]domain.OracleResolution
	markets map[string]domain.MarketResolution
}

func newMemResolutionStore() *memResolutionStore {
	return &memResolutionStore{
		oracles: make(map[string]domain.OracleResolution),
		markets: make(map[string]domain.MarketResolution),
	}
}

func (s *memResolutionStore) CreateOracle(_ context.Context, r domain.OracleResolution) error {
	s.oracles[r.MarketID] = r
	return nil
}

func (s *memResolutionStore) GetOracle(_ context.Context, marketID string) (domain.OracleResolution, error) {
	r, ok := s.oracles[marketID]
	if !ok {
		return domain.OracleResolution{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *memResolutionStore) CreateMarket(_ context.Context, r domain.MarketResolution) error {
	s.markets[r.MarketID] = r
	return nil
}

func (s *memResolutionStore) GetMarket(_ context.Context, marketID string) (domain.MarketResolution, error) {
	r, ok := s.markets[marketID]
	if !ok {
		return domain.MarketResolution{}, domain.ErrNotFound
	}
	return r, nil
}

// memHistoryStore is an in-memory append-only threshold log.
type memHistoryStore struct {
	entries map[string][]domain.ThresholdHistoryEntry
}

func newMemHistoryStore() *memHistoryStore {
	return &memHistoryStore{entries: make(map[string][]domain.ThresholdHistoryEntry)}
}

func (s *memHistoryStore) Append(_ context.Context, e domain.ThresholdHistoryEntry) (domain.ThresholdHistoryEntry, error) {
	e.Seq = int64(len(s.entries[e.MarketID]) + 1)
	s.entries[e.MarketID] = append(s.entries[e.MarketID], e)
	return e, nil
}

func (s *memHistoryStore) List(_ context.Context, marketID string) ([]domain.ThresholdHistoryEntry, error) {
	return s.entries[marketID], nil
}

// memExtensionStore is an in-memory append-only extension log.
type memExtensionStore struct {
	records map[string][]domain.ExtensionRecord
}

func newMemExtensionStore() *memExtensionStore {
	return &memExtensionStore{records: make(map[string][]domain.ExtensionRecord)}
}

func (s *memExtensionStore) Append(_ context.Context, r domain.ExtensionRecord) (domain.ExtensionRecord, error) {
	r.Seq = int64(len(s.records[r.MarketID]) + 1)
	s.records[r.MarketID] = append(s.records[r.MarketID], r)
	return r, nil
}

func (s *memExtensionStore) List(_ context.Context, marketID string) ([]domain.ExtensionRecord, error) {
	return s.records[marketID], nil
}

func (s *memExtensionStore) CountByMarket(_ context.Context, marketID string) (int, error) {
	return len(s.records[marketID]), nil
}

// memAuditStore collects audit events.
type memAuditStore struct {
	events []string
}

func (s *memAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	s.events = append(s.events, event)
	return nil
}

func (s *memAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (s *memAuditStore) has(event string) bool {
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

// transfer is one recorded ledger movement.
type transfer struct {
	from   string
	to     string
	amount int64
}

// recordingFunds records transfers; set err to make every transfer fail.
type recordingFunds struct {
	transfers []transfer
	err       error
}

func (f *recordingFunds) Transfer(_ context.Context, from, to string, amount int64) error {
	if f.err != nil {
		return f.err
	}
	f.transfers = append(f.transfers, transfer{from: from, to: to, amount: amount})
	return nil
}

// memCache is a map-backed market cache counting writes and invalidations.
type memCache struct {
	store         map[string]domain.Market
	sets          int
	invalidations int
}

func newMemCache() *memCache {
	return &memCache{store: make(map[string]domain.Market)}
}

func (c *memCache) Get(_ context.Context, id string) (domain.Market, error) {
	m, ok := c.store[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("cache %s: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

func (c *memCache) Set(_ context.Context, m domain.Market) error {
	c.sets++
	c.store[m.ID] = m
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id string) error {
	c.invalidations++
	delete(c.store, id)
	return nil
}

// trackingLocks counts acquisitions and releases; set err to fail Acquire.
type trackingLocks struct {
	acquired int
	released int
	err      error
}

func (l *trackingLocks) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

// memBus records published payloads per channel and stream.
type memBus struct {
	published map[string][][]byte
	streams   map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{
		published: make(map[string][][]byte),
		streams:   make(map[string][][]byte),
	}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *memBus) StreamRead(_ context.Context, _ string, _ string, _ int) ([]domain.StreamMessage, error) {
	return nil, nil
}

// fixture wires every service against shared in-memory fakes with a fixed
// clock.
type fixture struct {
	markets     *memMarketStore
	bets        *memBetStore
	resolutions *memResolutionStore
	history     *memHistoryStore
	extensions  *memExtensionStore
	audit       *memAuditStore
	funds       *recordingFunds
	cache       *memCache
	locks       *trackingLocks
	bus         *memBus
	guard       *Guard
	cfg         Config
}

func newFixture() *fixture {
	return &fixture{
		markets:     newMemMarketStore(),
		bets:        &memBetStore{},
		resolutions: newMemResolutionStore(),
		history:     newMemHistoryStore(),
		extensions:  newMemExtensionStore(),
		audit:       &memAuditStore{},
		funds:       &recordingFunds{},
		cache:       newMemCache(),
		locks:       &trackingLocks{},
		bus:         newMemBus(),
		guard:       NewGuard(),
		cfg:         testConfig(),
	}
}

func (f *fixture) marketService() *MarketService {
	s := NewMarketService(f.markets, f.bets, f.cache, f.locks, f.funds, f.audit, f.guard, f.cfg, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *fixture) resolutionService() *ResolutionService {
	s := NewResolutionService(f.markets, f.bets, f.resolutions, f.history, f.cache, f.locks, f.bus, f.funds, f.audit, f.guard, f.cfg, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *fixture) disputeService() *DisputeService {
	s := NewDisputeService(f.markets, f.history, f.locks, f.bus, f.audit, f.cfg, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *fixture) payoutService() *PayoutService {
	s := NewPayoutService(f.markets, f.bets, f.cache, f.locks, f.bus, f.funds, f.audit, f.guard, f.cfg, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *fixture) extensionService() *ExtensionService {
	s := NewExtensionService(f.markets, f.extensions, f.cache, f.locks, f.bus, f.funds, f.audit, f.guard, f.cfg, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

// seed stores a market directly, bypassing CreateMarket validation.
func (f *fixture) seed(m domain.Market) {
	m.EnsureMaps()
	f.markets.markets[m.ID] = m
}

// activeMarket is a two-outcome market still inside its voting window.
func activeMarket(id string) domain.Market {
	return domain.Market{
		ID:       id,
		Question: "Will BTC close above 100k?",
		Outcomes: []string{"Yes", "No"},
		EndTime:  fixedNow.Add(24 * time.Hour),
		Admin:    adminAddr,
		Oracle: domain.OracleConfig{
			Provider:   "binance",
			FeedID:     "BTCUSDT",
			Threshold:  100_000,
			Comparator: domain.CmpGT,
		},
		Status:           domain.MarketStatusActive,
		MaxExtensionDays: 90,
		CreatedAt:        fixedNow.Add(-72 * time.Hour),
	}
}

// endedMarket has closed but carries no oracle result yet.
func endedMarket(id string) domain.Market {
	m := activeMarket(id)
	m.EndTime = fixedNow.Add(-time.Hour)
	return m
}

// resolvedMarket is settled on "Yes" with a 500M pool, 100M of it winning.
func resolvedMarket(id string) domain.Market {
	m := endedMarket(id)
	m.OracleResult = "Yes"
	m.WinningOutcome = "Yes"
	m.Status = domain.MarketStatusResolved
	m.Votes = map[string]string{
		aliceAddr: "Yes",
		bobAddr:   "No",
	}
	m.Stakes = map[string]int64{
		aliceAddr: 100_000_000,
		bobAddr:   400_000_000,
	}
	m.TotalStaked = 500_000_000
	return m
}

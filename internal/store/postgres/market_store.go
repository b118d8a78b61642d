package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Participant
// maps (votes, stakes, dispute stakes, claimed flags) are stored as JSONB
// and the whole record is written back on every update.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, question, outcomes, end_time, admin_address,
	oracle_provider, oracle_feed_id, oracle_threshold, oracle_comparator,
	oracle_result, votes, stakes, dispute_stakes, claimed, total_staked,
	winning_outcome, fee_collected, total_extension_days, max_extension_days,
	status, created_at, updated_at`

// marketJSON bundles the JSONB columns for encoding.
type marketJSON struct {
	outcomes      []byte
	votes         []byte
	stakes        []byte
	disputeStakes []byte
	claimed       []byte
}

func encodeMarket(m *domain.Market) (marketJSON, error) {
	m.EnsureMaps()

	var enc marketJSON
	var err error
	if enc.outcomes, err = json.Marshal(m.Outcomes); err != nil {
		return enc, fmt.Errorf("postgres: marshal outcomes: %w", err)
	}
	if enc.votes, err = json.Marshal(m.Votes); err != nil {
		return enc, fmt.Errorf("postgres: marshal votes: %w", err)
	}
	if enc.stakes, err = json.Marshal(m.Stakes); err != nil {
		return enc, fmt.Errorf("postgres: marshal stakes: %w", err)
	}
	if enc.disputeStakes, err = json.Marshal(m.DisputeStakes); err != nil {
		return enc, fmt.Errorf("postgres: marshal dispute stakes: %w", err)
	}
	if enc.claimed, err = json.Marshal(m.Claimed); err != nil {
		return enc, fmt.Errorf("postgres: marshal claimed: %w", err)
	}
	return enc, nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status, comparator string
	var outcomes, votes, stakes, disputeStakes, claimed []byte

	err := row.Scan(
		&m.ID, &m.Question, &outcomes, &m.EndTime, &m.Admin,
		&m.Oracle.Provider, &m.Oracle.FeedID, &m.Oracle.Threshold, &comparator,
		&m.OracleResult, &votes, &stakes, &disputeStakes, &claimed, &m.TotalStaked,
		&m.WinningOutcome, &m.FeeCollected, &m.TotalExtensionDays, &m.MaxExtensionDays,
		&status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.Status = domain.MarketStatus(status)
	m.Oracle.Comparator = domain.Comparator(comparator)

	if err := json.Unmarshal(outcomes, &m.Outcomes); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: unmarshal outcomes: %w", err)
	}
	if err := json.Unmarshal(votes, &m.Votes); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: unmarshal votes: %w", err)
	}
	if err := json.Unmarshal(stakes, &m.Stakes); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: unmarshal stakes: %w", err)
	}
	if err := json.Unmarshal(disputeStakes, &m.DisputeStakes); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: unmarshal dispute stakes: %w", err)
	}
	if err := json.Unmarshal(claimed, &m.Claimed); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: unmarshal claimed: %w", err)
	}
	return m, nil
}

// Create inserts a new market.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	enc, err := encodeMarket(&m)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO markets (
			id, question, outcomes, end_time, admin_address,
			oracle_provider, oracle_feed_id, oracle_threshold, oracle_comparator,
			oracle_result, votes, stakes, dispute_stakes, claimed, total_staked,
			winning_outcome, fee_collected, total_extension_days, max_extension_days,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21, NOW()
		)`

	_, err = s.pool.Exec(ctx, query,
		m.ID, m.Question, enc.outcomes, m.EndTime, m.Admin,
		m.Oracle.Provider, m.Oracle.FeedID, m.Oracle.Threshold, string(m.Oracle.Comparator),
		m.OracleResult, enc.votes, enc.stakes, enc.disputeStakes, enc.claimed, m.TotalStaked,
		m.WinningOutcome, m.FeeCollected, m.TotalExtensionDays, m.MaxExtensionDays,
		string(m.Status), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// Get retrieves a market by its primary key.
func (s *MarketStore) Get(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// Update writes the whole market record back.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	enc, err := encodeMarket(&m)
	if err != nil {
		return err
	}

	const query = `
		UPDATE markets SET
			question             = $2,
			outcomes             = $3,
			end_time             = $4,
			admin_address        = $5,
			oracle_provider      = $6,
			oracle_feed_id       = $7,
			oracle_threshold     = $8,
			oracle_comparator    = $9,
			oracle_result        = $10,
			votes                = $11,
			stakes               = $12,
			dispute_stakes       = $13,
			claimed              = $14,
			total_staked         = $15,
			winning_outcome      = $16,
			fee_collected        = $17,
			total_extension_days = $18,
			max_extension_days   = $19,
			status               = $20,
			updated_at           = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		m.ID, m.Question, enc.outcomes, m.EndTime, m.Admin,
		m.Oracle.Provider, m.Oracle.FeedID, m.Oracle.Threshold, string(m.Oracle.Comparator),
		m.OracleResult, enc.votes, enc.stakes, enc.disputeStakes, enc.claimed, m.TotalStaked,
		m.WinningOutcome, m.FeeCollected, m.TotalExtensionDays, m.MaxExtensionDays,
		string(m.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// listQuery runs a market list query and scans the rows.
func (s *MarketStore) listQuery(ctx context.Context, query string, args ...any) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// ListActive returns active markets ordered by end time.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = 'active' ORDER BY end_time ASC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.listQuery(ctx, query, args...)
}

// ListEndedUnresolved returns markets past their end time with no oracle
// result, oldest first.
func (s *MarketStore) ListEndedUnresolved(ctx context.Context, now time.Time, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets
		WHERE end_time <= $1 AND oracle_result = '' AND status IN ('active', 'disputed')
		ORDER BY end_time ASC`
	args := []any{now}

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}

	return s.listQuery(ctx, query, args...)
}

// ListResolvedBefore returns markets resolved before the cutoff, oldest
// first. Used by the settled-market archiver.
func (s *MarketStore) ListResolvedBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets
		WHERE status = 'resolved' AND updated_at <= $1
		ORDER BY updated_at ASC`
	args := []any{cutoff}

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}

	return s.listQuery(ctx, query, args...)
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a new ResolutionStore backed by the given pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

// CreateOracle records an oracle price-to-outcome conversion. One record per
// market; a second insert for the same market fails.
func (s *ResolutionStore) CreateOracle(ctx context.Context, res domain.OracleResolution) error {
	const query = `
		INSERT INTO oracle_resolutions (
			market_id, outcome, price, threshold, comparator,
			provider, feed_id, confidence, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		res.MarketID, res.Outcome, res.Price, res.Threshold, string(res.Comparator),
		res.Provider, res.FeedID, res.Confidence, res.ResolvedAt)
	if err != nil {
		return fmt.Errorf("postgres: create oracle resolution %s: %w", res.MarketID, err)
	}
	return nil
}

// GetOracle retrieves the oracle resolution for a market.
func (s *ResolutionStore) GetOracle(ctx context.Context, marketID string) (domain.OracleResolution, error) {
	const query = `
		SELECT market_id, outcome, price, threshold, comparator,
			provider, feed_id, confidence, resolved_at
		FROM oracle_resolutions WHERE market_id = $1`

	var res domain.OracleResolution
	var comparator string
	err := s.pool.QueryRow(ctx, query, marketID).Scan(
		&res.MarketID, &res.Outcome, &res.Price, &res.Threshold, &comparator,
		&res.Provider, &res.FeedID, &res.Confidence, &res.ResolvedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OracleResolution{}, domain.ErrNotFound
		}
		return domain.OracleResolution{}, fmt.Errorf("postgres: get oracle resolution %s: %w", marketID, err)
	}
	res.Comparator = domain.Comparator(comparator)
	return res, nil
}

// CreateMarket records a final market resolution.
func (s *ResolutionStore) CreateMarket(ctx context.Context, res domain.MarketResolution) error {
	const query = `
		INSERT INTO market_resolutions (
			id, market_id, outcome, oracle_outcome,
			cons_outcome, cons_votes, cons_total, cons_pct,
			method, confidence, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (market_id) DO UPDATE SET
			id             = EXCLUDED.id,
			outcome        = EXCLUDED.outcome,
			oracle_outcome = EXCLUDED.oracle_outcome,
			cons_outcome   = EXCLUDED.cons_outcome,
			cons_votes     = EXCLUDED.cons_votes,
			cons_total     = EXCLUDED.cons_total,
			cons_pct       = EXCLUDED.cons_pct,
			method         = EXCLUDED.method,
			confidence     = EXCLUDED.confidence,
			resolved_at    = EXCLUDED.resolved_at`

	_, err := s.pool.Exec(ctx, query,
		res.ID, res.MarketID, res.Outcome, res.OracleOutcome,
		res.Consensus.Outcome, res.Consensus.Votes, res.Consensus.TotalVotes, res.Consensus.Percentage,
		string(res.Method), res.Confidence, res.ResolvedAt)
	if err != nil {
		return fmt.Errorf("postgres: create market resolution %s: %w", res.MarketID, err)
	}
	return nil
}

// GetMarket retrieves the final resolution of a market.
func (s *ResolutionStore) GetMarket(ctx context.Context, marketID string) (domain.MarketResolution, error) {
	const query = `
		SELECT id, market_id, outcome, oracle_outcome,
			cons_outcome, cons_votes, cons_total, cons_pct,
			method, confidence, resolved_at
		FROM market_resolutions WHERE market_id = $1`

	var res domain.MarketResolution
	var method string
	err := s.pool.QueryRow(ctx, query, marketID).Scan(
		&res.ID, &res.MarketID, &res.Outcome, &res.OracleOutcome,
		&res.Consensus.Outcome, &res.Consensus.Votes, &res.Consensus.TotalVotes, &res.Consensus.Percentage,
		&method, &res.Confidence, &res.ResolvedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.MarketResolution{}, domain.ErrNotFound
		}
		return domain.MarketResolution{}, fmt.Errorf("postgres: get market resolution %s: %w", marketID, err)
	}
	res.Method = domain.ResolutionMethod(method)
	return res, nil
}

var _ domain.ResolutionStore = (*ResolutionStore)(nil)

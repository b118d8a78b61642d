package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betCols = `id, market_id, user_addr, outcome, amount, status, created_at, updated_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var status string
	err := row.Scan(&b.ID, &b.MarketID, &b.User, &b.Outcome, &b.Amount,
		&status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Status = domain.BetStatus(status)
	return b, nil
}

// Create inserts a new bet. A user may hold at most one bet per market.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (id, market_id, user_addr, outcome, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := s.pool.Exec(ctx, query,
		b.ID, b.MarketID, b.User, b.Outcome, b.Amount, string(b.Status), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create bet %s: %w", b.ID, err)
	}
	return nil
}

// Get returns the bet a user holds on a market, or domain.ErrNotFound.
func (s *BetStore) Get(ctx context.Context, marketID, user string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 AND user_addr = $2`,
		marketID, user)
	b, err := scanBet(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s/%s: %w", marketID, user, err)
	}
	return b, nil
}

// UpdateStatus sets the settlement state of a single bet.
func (s *BetStore) UpdateStatus(ctx context.Context, id string, status domain.BetStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: update bet %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByMarket returns the bets on a market ordered by creation time.
func (s *BetStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betCols + ` FROM bets WHERE market_id = $1 ORDER BY created_at ASC`
	args := []any{marketID}

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for %s: %w", marketID, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// SettleMarket flips every active bet on the market to won or lost depending
// on whether its outcome matches winningOutcome. Already-settled bets are
// untouched, so settlement is idempotent.
func (s *BetStore) SettleMarket(ctx context.Context, marketID, winningOutcome string) error {
	const query = `
		UPDATE bets SET
			status = CASE WHEN outcome = $2 THEN 'won' ELSE 'lost' END,
			updated_at = NOW()
		WHERE market_id = $1 AND status = 'active'`

	_, err := s.pool.Exec(ctx, query, marketID, winningOutcome)
	if err != nil {
		return fmt.Errorf("postgres: settle bets for %s: %w", marketID, err)
	}
	return nil
}

// RefundMarket flips every active bet on the market to refunded.
func (s *BetStore) RefundMarket(ctx context.Context, marketID string) error {
	const query = `
		UPDATE bets SET status = 'refunded', updated_at = NOW()
		WHERE market_id = $1 AND status = 'active'`

	_, err := s.pool.Exec(ctx, query, marketID)
	if err != nil {
		return fmt.Errorf("postgres: refund bets for %s: %w", marketID, err)
	}
	return nil
}

var _ domain.BetStore = (*BetStore)(nil)

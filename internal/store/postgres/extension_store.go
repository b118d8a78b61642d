package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// ExtensionStore implements domain.ExtensionStore using PostgreSQL. Like the
// threshold history it is append-only with transactional sequence assignment.
type ExtensionStore struct {
	pool *pgxpool.Pool
}

// NewExtensionStore creates a store backed by the given pool.
func NewExtensionStore(pool *pgxpool.Pool) *ExtensionStore {
	return &ExtensionStore{pool: pool}
}

// Append assigns the next sequence number for the market and inserts the
// record. The stored record is returned.
func (s *ExtensionStore) Append(ctx context.Context, r domain.ExtensionRecord) (domain.ExtensionRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("postgres: begin extension append: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM extensions WHERE market_id = $1 FOR UPDATE`,
		r.MarketID,
	).Scan(&r.Seq)
	if err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("postgres: next extension seq %s: %w", r.MarketID, err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO extensions (market_id, seq, days, fee, reason, actor, old_end_time, new_end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		r.MarketID, r.Seq, r.Days, r.Fee, r.Reason, r.Actor, r.OldEndTime, r.NewEndTime,
	).Scan(&r.CreatedAt)
	if err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("postgres: append extension %s: %w", r.MarketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ExtensionRecord{}, fmt.Errorf("postgres: commit extension append: %w", err)
	}
	return r, nil
}

// List returns the extension log for a market in sequence order.
func (s *ExtensionStore) List(ctx context.Context, marketID string) ([]domain.ExtensionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, seq, days, fee, reason, actor, old_end_time, new_end_time, created_at
		FROM extensions WHERE market_id = $1 ORDER BY seq ASC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list extensions %s: %w", marketID, err)
	}
	defer rows.Close()

	var recs []domain.ExtensionRecord
	for rows.Next() {
		var r domain.ExtensionRecord
		if err := rows.Scan(&r.MarketID, &r.Seq, &r.Days, &r.Fee, &r.Reason,
			&r.Actor, &r.OldEndTime, &r.NewEndTime, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan extension: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: extension rows: %w", err)
	}
	return recs, nil
}

// CountByMarket returns the number of extensions granted to a market.
func (s *ExtensionStore) CountByMarket(ctx context.Context, marketID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM extensions WHERE market_id = $1`, marketID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count extensions %s: %w", marketID, err)
	}
	return count, nil
}

var _ domain.ExtensionStore = (*ExtensionStore)(nil)

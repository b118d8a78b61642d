package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// ThresholdHistoryStore implements domain.ThresholdHistoryStore using
// PostgreSQL. Entries are append-only; sequence numbers are assigned inside a
// transaction so per-market ordering is strict.
type ThresholdHistoryStore struct {
	pool *pgxpool.Pool
}

// NewThresholdHistoryStore creates a store backed by the given pool.
func NewThresholdHistoryStore(pool *pgxpool.Pool) *ThresholdHistoryStore {
	return &ThresholdHistoryStore{pool: pool}
}

// Append assigns the next sequence number for the market and inserts the
// entry. The stored entry, with Seq and CreatedAt filled in, is returned.
func (s *ThresholdHistoryStore) Append(ctx context.Context, e domain.ThresholdHistoryEntry) (domain.ThresholdHistoryEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ThresholdHistoryEntry{}, fmt.Errorf("postgres: begin threshold append: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM threshold_history WHERE market_id = $1 FOR UPDATE`,
		e.MarketID,
	).Scan(&e.Seq)
	if err != nil {
		return domain.ThresholdHistoryEntry{}, fmt.Errorf("postgres: next threshold seq %s: %w", e.MarketID, err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO threshold_history (market_id, seq, old_threshold, new_threshold, reason, actor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		e.MarketID, e.Seq, e.OldThreshold, e.NewThreshold, e.Reason, e.Actor,
	).Scan(&e.CreatedAt)
	if err != nil {
		return domain.ThresholdHistoryEntry{}, fmt.Errorf("postgres: append threshold %s: %w", e.MarketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ThresholdHistoryEntry{}, fmt.Errorf("postgres: commit threshold append: %w", err)
	}
	return e, nil
}

// List returns the threshold change log for a market in sequence order.
func (s *ThresholdHistoryStore) List(ctx context.Context, marketID string) ([]domain.ThresholdHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, seq, old_threshold, new_threshold, reason, actor, created_at
		FROM threshold_history WHERE market_id = $1 ORDER BY seq ASC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list threshold history %s: %w", marketID, err)
	}
	defer rows.Close()

	var entries []domain.ThresholdHistoryEntry
	for rows.Next() {
		var e domain.ThresholdHistoryEntry
		if err := rows.Scan(&e.MarketID, &e.Seq, &e.OldThreshold, &e.NewThreshold,
			&e.Reason, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan threshold entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: threshold history rows: %w", err)
	}
	return entries, nil
}

var _ domain.ThresholdHistoryStore = (*ThresholdHistoryStore)(nil)

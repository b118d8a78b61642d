// Package funds records value movement between ledger accounts. The engine
// never holds balances itself; it computes amounts and appends transfer rows.
package funds

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// Ledger implements domain.FundsTransferrer by appending rows to the
// transfers table.
type Ledger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLedger creates a Ledger backed by the given pool.
func NewLedger(pool *pgxpool.Pool, logger *slog.Logger) *Ledger {
	return &Ledger{
		pool:   pool,
		logger: logger.With("component", "funds"),
	}
}

// Transfer records a movement of amount from one account to another.
// Negative and zero amounts are rejected.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount int64) error {
	if amount <= 0 {
		return domain.Validation("non_positive_amount",
			fmt.Sprintf("transfer amount must be positive, got %d", amount))
	}
	if from == to {
		return domain.Validation("self_transfer", "from and to accounts are identical")
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO transfers (from_addr, to_addr, amount) VALUES ($1, $2, $3)`,
		from, to, amount)
	if err != nil {
		return fmt.Errorf("funds: transfer %s -> %s: %w", from, to, err)
	}

	l.logger.Info("transfer recorded", "from", from, "to", to, "amount", amount)
	return nil
}

var _ domain.FundsTransferrer = (*Ledger)(nil)

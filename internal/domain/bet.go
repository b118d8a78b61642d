package domain

import "time"

// BetStatus represents the settlement state of a bet.
type BetStatus string

const (
	// BetStatusActive is the initial state of every bet.
	BetStatusActive BetStatus = "active"
	// BetStatusWon and BetStatusLost are set once, at resolution processing.
	BetStatusWon  BetStatus = "won"
	BetStatusLost BetStatus = "lost"
	// BetStatusRefunded is only reachable from Active, on market cancellation.
	BetStatusRefunded BetStatus = "refunded"
)

// Bet is a single participant's position on a market outcome. Amount is a
// fixed-point integer in the smallest currency unit.
type Bet struct {
	ID        string
	MarketID  string
	User      string
	Outcome   string
	Amount    int64
	Status    BetStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

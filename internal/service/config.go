// Package service orchestrates engine operations: per-market locking,
// whole-record load/modify/persist against the ledger, external-call
// bracketing, and event publication.
package service

import (
	"time"

	"github.com/hybridmarkets/resolver/internal/dispute"
	"github.com/hybridmarkets/resolver/internal/extension"
	"github.com/hybridmarkets/resolver/internal/oracle"
)

// Config carries the numeric engine parameters shared by the services. All
// amounts are fixed-point integers in the smallest currency unit.
type Config struct {
	FeePercent              int64
	MaxOutcomes             int
	HybridConsensusPct      int
	Dispute                 dispute.Params
	Extension               extension.Params
	DefaultMaxExtensionDays int
	DisputeExtension        time.Duration
	LockTTL                 time.Duration
	Oracle                  oracle.Config
}

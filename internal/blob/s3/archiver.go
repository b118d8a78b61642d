package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// BlobWriter is the narrow upload interface the archiver needs. *Writer
// satisfies it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Bundle is the archived form of a settled market: the full market record
// plus everything the ledger accumulated around it.
type Bundle struct {
	Market           domain.Market                  `json:"market"`
	Bets             []domain.Bet                   `json:"bets"`
	OracleResolution *domain.OracleResolution       `json:"oracle_resolution,omitempty"`
	MarketResolution *domain.MarketResolution       `json:"market_resolution,omitempty"`
	ThresholdHistory []domain.ThresholdHistoryEntry `json:"threshold_history,omitempty"`
	Extensions       []domain.ExtensionRecord       `json:"extensions,omitempty"`
	ArchivedAt       time.Time                      `json:"archived_at"`
}

// Archiver bundles settled markets into JSON objects on S3-compatible
// storage. Deletion of the archived rows from the primary store is
// intentionally NOT performed here; that is a separate, explicit step to be
// executed after the archive has been verified.
type Archiver struct {
	writer      BlobWriter
	markets     domain.MarketStore
	bets        domain.BetStore
	resolutions domain.ResolutionStore
	history     domain.ThresholdHistoryStore
	extensions  domain.ExtensionStore
	audit       domain.AuditStore
}

// NewArchiver creates an Archiver over the given stores.
func NewArchiver(
	writer BlobWriter,
	markets domain.MarketStore,
	bets domain.BetStore,
	resolutions domain.ResolutionStore,
	history domain.ThresholdHistoryStore,
	extensions domain.ExtensionStore,
	audit domain.AuditStore,
) *Archiver {
	return &Archiver{
		writer:      writer,
		markets:     markets,
		bets:        bets,
		resolutions: resolutions,
		history:     history,
		extensions:  extensions,
		audit:       audit,
	}
}

// ArchiveSettled uploads a bundle for every market resolved before the
// cutoff, up to batchSize markets per call, and returns the number archived.
// Each successful upload is recorded in the audit log.
func (a *Archiver) ArchiveSettled(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	markets, err := a.markets.ListResolvedBefore(ctx, cutoff, domain.ListOpts{Limit: batchSize})
	if err != nil {
		return 0, fmt.Errorf("s3blob: list settled markets: %w", err)
	}

	archived := 0
	for _, m := range markets {
		if err := a.archiveOne(ctx, m, cutoff); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (a *Archiver) archiveOne(ctx context.Context, m domain.Market, cutoff time.Time) error {
	bundle := Bundle{
		Market:     m,
		ArchivedAt: time.Now().UTC(),
	}

	bets, err := a.bets.ListByMarket(ctx, m.ID, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("s3blob: bundle bets %s: %w", m.ID, err)
	}
	bundle.Bets = bets

	if or, err := a.resolutions.GetOracle(ctx, m.ID); err == nil {
		bundle.OracleResolution = &or
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("s3blob: bundle oracle resolution %s: %w", m.ID, err)
	}
	if mr, err := a.resolutions.GetMarket(ctx, m.ID); err == nil {
		bundle.MarketResolution = &mr
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("s3blob: bundle market resolution %s: %w", m.ID, err)
	}

	if bundle.ThresholdHistory, err = a.history.List(ctx, m.ID); err != nil {
		return fmt.Errorf("s3blob: bundle threshold history %s: %w", m.ID, err)
	}
	if bundle.Extensions, err = a.extensions.List(ctx, m.ID); err != nil {
		return fmt.Errorf("s3blob: bundle extensions %s: %w", m.ID, err)
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("s3blob: marshal bundle %s: %w", m.ID, err)
	}

	path := bundlePath(m)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: upload bundle %s: %w", m.ID, err)
	}

	if err := a.audit.Log(ctx, "archive.market", map[string]any{
		"market_id": m.ID,
		"path":      path,
		"bets":      len(bundle.Bets),
		"cutoff":    cutoff.Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("s3blob: audit archive %s: %w", m.ID, err)
	}
	return nil
}

// bundlePath builds the S3 key for an archived market, partitioned by the
// year-month of the market's last update:
//
//	archive/markets/2026-08/<market-id>.json
func bundlePath(m domain.Market) string {
	return fmt.Sprintf("archive/markets/%s/%s.json", m.UpdatedAt.Format("2006-01"), m.ID)
}

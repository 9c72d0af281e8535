package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// archiveBatchSize caps how many markets one archive pass exports. Older
// records are picked up by the next pass.
const archiveBatchSize = 500

// auditBatchSize caps how many audit entries are exported per object.
const auditBatchSize = 10_000

// marketRecord is the exported shape of one settled market: the market row
// plus every bet placed on it, so the object is self-contained.
type marketRecord struct {
	Market domain.Market    `json:"market"`
	Bets   []domain.UserBet `json:"bets"`
}

// ArchiveImpl implements domain.Archiver by querying the stores for settled
// history, serializing it to JSONL, and uploading the result to object
// storage.
//
// Markets are exported but never deleted; the rows stay queryable and the
// object store copy is the long-term record. Audit entries ARE pruned after
// a verified upload, since the log grows without bound.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	markets domain.MarketStore
	bets    domain.BetStore
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	markets domain.MarketStore,
	bets domain.BetStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		markets: markets,
		bets:    bets,
		audit:   audit,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveMarkets exports resolved and cancelled markets that ended before
// the cutoff as one JSONL object keyed by the cutoff's year-month. Each line
// carries the market together with its full bet ledger. Returns the number
// of markets exported.
func (a *ArchiveImpl) ArchiveMarkets(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListTerminalBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	records := make([]marketRecord, 0, len(markets))
	for _, m := range markets {
		bets, err := a.bets.ListByMarket(ctx, m.MarketID, domain.ListOpts{Limit: 10_000})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive markets bets for %s: %w", m.MarketID, err)
		}
		records = append(records, marketRecord{Market: m, Bets: bets})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}

	count := int64(len(records))
	a.logger.InfoContext(ctx, "markets archived",
		slog.String("path", path),
		slog.Int64("count", count),
	)

	if err := a.audit.Log(ctx, "archive.markets", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive markets audit log: %w", err)
	}

	return count, nil
}

// ArchiveAuditLog exports audit entries older than the cutoff and, once the
// upload has succeeded, deletes them from the primary store. Returns the
// number of entries exported.
func (a *ArchiveImpl) ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before, auditBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	// Prune only up to the last exported entry, not the cutoff: a capped
	// batch must not delete rows that were never uploaded.
	pruneBefore := entries[len(entries)-1].CreatedAt.Add(time.Millisecond)
	if pruneBefore.After(before) {
		pruneBefore = before
	}
	deleted, err := a.audit.DeleteBefore(ctx, pruneBefore)
	if err != nil {
		return int64(len(entries)), fmt.Errorf("s3blob: archive audit prune: %w", err)
	}

	a.logger.InfoContext(ctx, "audit log archived",
		slog.String("path", path),
		slog.Int("exported", len(entries)),
		slog.Int64("pruned", deleted),
	)
	return int64(len(entries)), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/markets/2026-08.jsonl
//	archive/audit/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

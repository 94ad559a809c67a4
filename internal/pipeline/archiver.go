package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sonpham-org/poly/internal/domain"
)

// multipartThreshold is the payload size above which exports switch to
// multipart upload.
const multipartThreshold = 5 * 1024 * 1024

// archivePageSize bounds how many snapshot rows are loaded per export page.
const archivePageSize = 1000

// Archiver moves aged orderbook snapshots from the database to S3 cold
// storage: rows older than the retention window are exported as JSON
// objects keyed by market slug and run time, then deleted.
type Archiver struct {
	snapshots     domain.SnapshotStore
	blob          domain.BlobWriter
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(snapshots domain.SnapshotStore, blob domain.BlobWriter, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		snapshots:     snapshots,
		blob:          blob,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Run executes a single archive run. Snapshots older than the retention
// cutoff are exported page by page, grouped per market, and removed from
// the database only after every export succeeded.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	runStamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")

	a.logger.Info("starting snapshot archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	total := 0
	for {
		page, err := a.snapshots.ListBefore(ctx, cutoff, archivePageSize)
		if err != nil {
			return fmt.Errorf("listing snapshots before %v: %w", cutoff, err)
		}
		if len(page) == 0 {
			break
		}

		for slug, group := range groupBySlug(page) {
			key := fmt.Sprintf("snapshots/%s/%s-%06d.json", slug, runStamp, total)
			if err := a.export(ctx, key, group); err != nil {
				return fmt.Errorf("exporting %d snapshots for %s: %w", len(group), slug, err)
			}
		}

		// Delete exactly the exported rows by ID. Rows sharing the page
		// boundary's timestamp but beyond the LIMIT stay put until the
		// next page exports them.
		ids := make([]int64, len(page))
		for i, snap := range page {
			ids[i] = snap.ID
		}
		deleted, err := a.snapshots.DeleteByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("deleting archived snapshots: %w", err)
		}
		total += int(deleted)

		if len(page) < archivePageSize {
			break
		}
	}

	a.logger.Info("snapshot archive run complete", slog.Int("archived", total))
	return nil
}

// export uploads one JSON object, switching to multipart for payloads
// above the threshold.
func (a *Archiver) export(ctx context.Context, key string, snaps []domain.OrderbookSnapshot) error {
	payload, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("encode snapshots: %w", err)
	}

	if len(payload) > multipartThreshold {
		return a.blob.PutMultipart(ctx, key, bytes.NewReader(payload), multipartThreshold)
	}
	return a.blob.Put(ctx, key, bytes.NewReader(payload), "application/json")
}

func groupBySlug(snaps []domain.OrderbookSnapshot) map[string][]domain.OrderbookSnapshot {
	groups := make(map[string][]domain.OrderbookSnapshot)
	for _, s := range snaps {
		groups[s.MarketSlug] = append(groups[s.MarketSlug], s)
	}
	return groups
}

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TrackedMarketStore persists markets under periodic observation.
type TrackedMarketStore interface {
	Upsert(ctx context.Context, m TrackedMarket) (TrackedMarket, error)
	GetBySlug(ctx context.Context, slug string) (TrackedMarket, error)
	ListActive(ctx context.Context) ([]TrackedMarket, error)
	// SetActive flips the active flag; tracking is stopped by
	// deactivation, never by deletion.
	SetActive(ctx context.Context, slug string, active bool) error
}

// SnapshotStore persists point-in-time orderbook captures.
type SnapshotStore interface {
	Insert(ctx context.Context, s OrderbookSnapshot) error
	ListBySlug(ctx context.Context, slug string, opts ListOpts) ([]OrderbookSnapshot, error)
	// ListBefore returns snapshots older than cutoff, oldest first,
	// for cold-storage archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]OrderbookSnapshot, error)
	// DeleteByIDs removes exactly the given snapshot rows and reports how
	// many were deleted.
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

// TradeCacheStore persists provider trades keyed by their natural dedup
// identity (transaction hash, condition id).
type TradeCacheStore interface {
	// UpsertBatch inserts trades, silently skipping rows whose dedup key
	// already exists, and returns how many rows were newly inserted.
	UpsertBatch(ctx context.Context, trades []CachedTrade) (int, error)
	ListByCondition(ctx context.Context, conditionID string, opts ListOpts) ([]CachedTrade, error)
	CountByCondition(ctx context.Context, conditionID string) (int64, error)
}

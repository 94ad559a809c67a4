package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/memocache"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
)

const priceHistoryTTL = 60 * time.Second

// PriceFetcher is the slice of the CLOB client the price service needs.
type PriceFetcher interface {
	GetOrderbook(ctx context.Context, tokenID string) (domain.Orderbook, error)
	GetPriceHistory(ctx context.Context, tokenID string, q polymarket.HistoryQuery) ([]domain.PricePoint, error)
}

// PriceService serves live orderbooks, memoized price history, and
// persisted orderbook snapshots.
type PriceService struct {
	clob      PriceFetcher
	snapshots domain.SnapshotStore
	cache     *memocache.Cache
	logger    *slog.Logger
}

func NewPriceService(clob PriceFetcher, snapshots domain.SnapshotStore, cache *memocache.Cache, logger *slog.Logger) *PriceService {
	return &PriceService{clob: clob, snapshots: snapshots, cache: cache, logger: logger}
}

// GetOrderbook fetches the live book for one token. Books move too fast
// to be worth memoizing.
func (s *PriceService) GetOrderbook(ctx context.Context, tokenID string) (domain.Orderbook, error) {
	book, err := s.clob.GetOrderbook(ctx, tokenID)
	if err != nil {
		return domain.Orderbook{}, fmt.Errorf("service: orderbook for %s: %w", tokenID, err)
	}
	return book, nil
}

// GetPriceHistory returns the price series for one token, memoized per
// distinct query.
func (s *PriceService) GetPriceHistory(ctx context.Context, tokenID string, q polymarket.HistoryQuery) ([]domain.PricePoint, error) {
	return memocache.WithCache(ctx, s.cache, q.CacheKey(tokenID), priceHistoryTTL, func(ctx context.Context) ([]domain.PricePoint, error) {
		return s.clob.GetPriceHistory(ctx, tokenID, q)
	})
}

// ListSnapshots returns persisted orderbook snapshots for a market slug,
// oldest first.
func (s *PriceService) ListSnapshots(ctx context.Context, slug string, opts domain.ListOpts) ([]domain.OrderbookSnapshot, error) {
	snaps, err := s.snapshots.ListBySlug(ctx, slug, opts)
	if err != nil {
		return nil, fmt.Errorf("service: snapshots for %s: %w", slug, err)
	}
	return snaps, nil
}

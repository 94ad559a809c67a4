// Package pipeline contains the periodic jobs that keep the persistent
// store current: the snapshot/ingestion job and the cold-storage archiver.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
	"github.com/sonpham-org/poly/internal/replay"
)

// BookFetcher retrieves live order book depth from the external provider.
type BookFetcher interface {
	GetOrderbook(ctx context.Context, tokenID string) (domain.Orderbook, error)
}

// TradeFetcher retrieves recent raw trades from the external provider.
type TradeFetcher interface {
	GetTrades(ctx context.Context, conditionID string, limit int) ([]polymarket.RawTrade, error)
}

// MarketResult is the per-market outcome of one ingestion cycle.
// TradesTotal is the cumulative cached depth for the market's condition
// after the cycle, as opposed to TradesCached, the rows this cycle added.
type MarketResult struct {
	Slug          string `json:"slug"`
	SnapshotSaved bool   `json:"snapshotSaved"`
	TradesCached  int    `json:"tradesCached"`
	TradesTotal   int64  `json:"tradesTotal"`
	Error         string `json:"error,omitempty"`
}

// Report summarizes one ingestion cycle across every tracked market.
type Report struct {
	RunID     string         `json:"runId"`
	StartedAt time.Time      `json:"startedAt"`
	Tracked   int            `json:"tracked"`
	Results   []MarketResult `json:"results"`
}

// Snapshotter is the periodic ingestion job. For each actively tracked
// market it captures an order book snapshot and idempotently caches recent
// trades. Failures are isolated per market: one market's provider outage
// never aborts the batch.
//
// There is no cross-process lock around Run. Trade upserts stay idempotent
// under overlapping runs thanks to the dedup key, but snapshot rows are
// not deduplicated, so the scheduler is expected not to overlap
// invocations.
type Snapshotter struct {
	tracked    domain.TrackedMarketStore
	snapshots  domain.SnapshotStore
	tradeCache domain.TradeCacheStore
	books      BookFetcher
	trades     TradeFetcher
	tradeLimit int
	logger     *slog.Logger
}

// NewSnapshotter creates a Snapshotter over the given stores and fetchers.
func NewSnapshotter(
	tracked domain.TrackedMarketStore,
	snapshots domain.SnapshotStore,
	tradeCache domain.TradeCacheStore,
	books BookFetcher,
	trades TradeFetcher,
	tradeLimit int,
	logger *slog.Logger,
) *Snapshotter {
	if tradeLimit <= 0 {
		tradeLimit = 100
	}
	return &Snapshotter{
		tracked:    tracked,
		snapshots:  snapshots,
		tradeCache: tradeCache,
		books:      books,
		trades:     trades,
		tradeLimit: tradeLimit,
		logger:     logger,
	}
}

// Run executes a single ingestion cycle and returns the per-market report.
// It only errors when the tracked-market listing itself fails; everything
// downstream degrades to a failure entry in the report.
func (s *Snapshotter) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	markets, err := s.tracked.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("pipeline: list tracked markets: %w", err)
	}
	report.Tracked = len(markets)
	report.Results = make([]MarketResult, 0, len(markets))

	for _, market := range markets {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("pipeline: ingestion cancelled: %w", err)
		}

		cached, total, err := s.ingestMarket(ctx, market)
		if err != nil {
			s.logger.Error("market ingestion failed",
				slog.String("run_id", report.RunID),
				slog.String("slug", market.Slug),
				slog.String("error", err.Error()),
			)
			report.Results = append(report.Results, MarketResult{
				Slug:          market.Slug,
				SnapshotSaved: false,
				TradesCached:  0,
				Error:         err.Error(),
			})
			continue
		}

		report.Results = append(report.Results, MarketResult{
			Slug:          market.Slug,
			SnapshotSaved: true,
			TradesCached:  cached,
			TradesTotal:   total,
		})
	}

	s.logger.Info("ingestion cycle complete",
		slog.String("run_id", report.RunID),
		slog.Int("tracked", report.Tracked),
	)
	return report, nil
}

// ingestMarket captures one snapshot and caches recent trades for a single
// market. It returns the number of newly cached trades and the market's
// cumulative cached count.
func (s *Snapshotter) ingestMarket(ctx context.Context, market domain.TrackedMarket) (int, int64, error) {
	book, err := s.books.GetOrderbook(ctx, market.TokenIDYes)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch book: %w", err)
	}

	_, _, spread, midpoint := domain.BookStats(book.Bids, book.Asks)

	// Persist unconditionally, empty depth included: absence of liquidity
	// is itself a fact worth recording.
	snap := domain.OrderbookSnapshot{
		TokenID:    market.TokenIDYes,
		MarketSlug: market.Slug,
		Timestamp:  time.Now().UTC(),
		Bids:       book.Bids,
		Asks:       book.Asks,
		Spread:     spread,
		Midpoint:   midpoint,
	}
	if err := s.snapshots.Insert(ctx, snap); err != nil {
		return 0, 0, fmt.Errorf("save snapshot: %w", err)
	}

	raws, err := s.trades.GetTrades(ctx, market.ConditionID, s.tradeLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch trades: %w", err)
	}

	batch := make([]domain.CachedTrade, 0, len(raws))
	for _, raw := range raws {
		t, err := replay.Normalize(raw, "YES")
		if err != nil {
			// Malformed records are dropped, not fatal.
			continue
		}
		batch = append(batch, toCachedTrade(t, market))
	}

	cached, err := s.tradeCache.UpsertBatch(ctx, batch)
	if err != nil {
		return 0, 0, fmt.Errorf("cache trades: %w", err)
	}

	total, err := s.tradeCache.CountByCondition(ctx, market.ConditionID)
	if err != nil {
		// The batch is already persisted; a failed count only degrades
		// the report.
		s.logger.Warn("trade count unavailable",
			slog.String("slug", market.Slug),
			slog.String("error", err.Error()),
		)
		total = int64(cached)
	}
	return cached, total, nil
}

// toCachedTrade binds a normalized trade to its owning market for
// persistence. A missing transaction hash is stored as the empty string,
// which collapses hashless records into one row per market under the dedup
// key.
func toCachedTrade(t domain.Trade, market domain.TrackedMarket) domain.CachedTrade {
	hash := ""
	if t.TransactionHash != nil {
		hash = *t.TransactionHash
	}
	return domain.CachedTrade{
		ConditionID:     market.ConditionID,
		MarketSlug:      market.Slug,
		Side:            t.Side,
		Outcome:         t.Outcome,
		Price:           t.Price,
		Size:            t.Size,
		USDCAmount:      t.USDCAmount,
		Timestamp:       t.Timestamp,
		Maker:           t.Maker,
		Taker:           t.Taker,
		TransactionHash: hash,
		IsMint:          t.IsMint,
	}
}

// RunLoop runs ingestion cycles on a repeating interval until the context
// is cancelled. The first cycle runs immediately.
func (s *Snapshotter) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("ingestion cycle failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("ingestion cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

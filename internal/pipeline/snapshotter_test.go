package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubTrackedStore struct {
	markets []domain.TrackedMarket
	err     error
}

func (s *stubTrackedStore) Upsert(ctx context.Context, m domain.TrackedMarket) (domain.TrackedMarket, error) {
	return m, nil
}

func (s *stubTrackedStore) GetBySlug(ctx context.Context, slug string) (domain.TrackedMarket, error) {
	return domain.TrackedMarket{}, domain.ErrNotFound
}

func (s *stubTrackedStore) ListActive(ctx context.Context) ([]domain.TrackedMarket, error) {
	return s.markets, s.err
}

func (s *stubTrackedStore) SetActive(ctx context.Context, slug string, active bool) error {
	return nil
}

type stubSnapshotStore struct {
	inserted []domain.OrderbookSnapshot
}

func (s *stubSnapshotStore) Insert(ctx context.Context, snap domain.OrderbookSnapshot) error {
	s.inserted = append(s.inserted, snap)
	return nil
}

func (s *stubSnapshotStore) ListBySlug(ctx context.Context, slug string, opts domain.ListOpts) ([]domain.OrderbookSnapshot, error) {
	return nil, nil
}

func (s *stubSnapshotStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.OrderbookSnapshot, error) {
	return nil, nil
}

func (s *stubSnapshotStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	return 0, nil
}

type stubTradeCache struct {
	batches [][]domain.CachedTrade
	// newPerBatch is returned as the newly-inserted count for each call.
	newPerBatch int
	total       int64
	countErr    error
}

func (s *stubTradeCache) UpsertBatch(ctx context.Context, trades []domain.CachedTrade) (int, error) {
	s.batches = append(s.batches, trades)
	if s.newPerBatch > len(trades) {
		return len(trades), nil
	}
	return s.newPerBatch, nil
}

func (s *stubTradeCache) ListByCondition(ctx context.Context, conditionID string, opts domain.ListOpts) ([]domain.CachedTrade, error) {
	return nil, nil
}

func (s *stubTradeCache) CountByCondition(ctx context.Context, conditionID string) (int64, error) {
	return s.total, s.countErr
}

type stubBookFetcher struct {
	books   map[string]domain.Orderbook
	failFor map[string]bool
}

func (s *stubBookFetcher) GetOrderbook(ctx context.Context, tokenID string) (domain.Orderbook, error) {
	if s.failFor[tokenID] {
		return domain.Orderbook{}, domain.ErrProviderUnavailable
	}
	return s.books[tokenID], nil
}

type stubTradeFetcher struct {
	trades map[string][]polymarket.RawTrade
}

func (s *stubTradeFetcher) GetTrades(ctx context.Context, conditionID string, limit int) ([]polymarket.RawTrade, error) {
	return s.trades[conditionID], nil
}

func tracked(slug, conditionID, tokenYes string) domain.TrackedMarket {
	return domain.TrackedMarket{
		Slug:        slug,
		ConditionID: conditionID,
		TokenIDYes:  tokenYes,
		Active:      true,
	}
}

func TestSnapshotter_RunIsolatesFailures(t *testing.T) {
	markets := []domain.TrackedMarket{
		tracked("m1", "c1", "t1"),
		tracked("m2", "c2", "t2"),
		tracked("m3", "c3", "t3"),
	}

	books := &stubBookFetcher{
		books: map[string]domain.Orderbook{
			"t1": {Bids: []domain.PriceLevel{{Price: 0.4, Size: 10}}, Asks: []domain.PriceLevel{{Price: 0.6, Size: 10}}},
			"t3": {},
		},
		failFor: map[string]bool{"t2": true},
	}
	snaps := &stubSnapshotStore{}
	cache := &stubTradeCache{newPerBatch: 100}

	s := NewSnapshotter(
		&stubTrackedStore{markets: markets}, snaps, cache,
		books, &stubTradeFetcher{trades: map[string][]polymarket.RawTrade{
			"c1": {{Price: 0.5, Size: 2, Timestamp: polymarket.FlexTimestamp{Epoch: 100}, TransactionHash: "0x1"}},
		}},
		50, discardLogger(),
	)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, report.Tracked)
	require.Len(t, report.Results, 3)
	require.NotEmpty(t, report.RunID)

	byslug := map[string]MarketResult{}
	for _, r := range report.Results {
		byslug[r.Slug] = r
	}

	require.True(t, byslug["m1"].SnapshotSaved)
	require.Equal(t, 1, byslug["m1"].TradesCached)
	require.Empty(t, byslug["m1"].Error)

	require.False(t, byslug["m2"].SnapshotSaved)
	require.NotEmpty(t, byslug["m2"].Error)

	require.True(t, byslug["m3"].SnapshotSaved)
	require.Equal(t, 0, byslug["m3"].TradesCached)

	// m2 failed before its snapshot; the other two persisted one each.
	require.Len(t, snaps.inserted, 2)
}

func TestSnapshotter_EmptyBookSnapshotPersisted(t *testing.T) {
	snaps := &stubSnapshotStore{}
	s := NewSnapshotter(
		&stubTrackedStore{markets: []domain.TrackedMarket{tracked("m1", "c1", "t1")}},
		snaps, &stubTradeCache{},
		&stubBookFetcher{books: map[string]domain.Orderbook{"t1": {}}},
		&stubTradeFetcher{}, 50, discardLogger(),
	)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps.inserted, 1)

	// Absent depth resolves to the sentinel bounds: bid 0, ask 1.
	snap := snaps.inserted[0]
	require.Equal(t, 1.0, snap.Spread)
	require.Equal(t, 0.5, snap.Midpoint)
}

func TestSnapshotter_MalformedTradesDropped(t *testing.T) {
	cache := &stubTradeCache{newPerBatch: 100}
	s := NewSnapshotter(
		&stubTrackedStore{markets: []domain.TrackedMarket{tracked("m1", "c1", "t1")}},
		&stubSnapshotStore{}, cache,
		&stubBookFetcher{books: map[string]domain.Orderbook{"t1": {}}},
		&stubTradeFetcher{trades: map[string][]polymarket.RawTrade{
			"c1": {
				{Price: 0.5, Size: 1, Timestamp: polymarket.FlexTimestamp{Epoch: 100}},
				{Price: 0.6, Size: 1}, // unresolvable timestamp
			},
		}},
		50, discardLogger(),
	)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Results[0].TradesCached)
	require.Len(t, cache.batches, 1)
	require.Len(t, cache.batches[0], 1)
}

func TestSnapshotter_ReportsOnlyNewlyCached(t *testing.T) {
	// The store reports zero new rows when every trade is already cached;
	// the cumulative count still reflects the prior runs.
	cache := &stubTradeCache{newPerBatch: 0, total: 42}
	s := NewSnapshotter(
		&stubTrackedStore{markets: []domain.TrackedMarket{tracked("m1", "c1", "t1")}},
		&stubSnapshotStore{}, cache,
		&stubBookFetcher{books: map[string]domain.Orderbook{"t1": {}}},
		&stubTradeFetcher{trades: map[string][]polymarket.RawTrade{
			"c1": {{Price: 0.5, Size: 1, Timestamp: polymarket.FlexTimestamp{Epoch: 100}, TransactionHash: "0x1"}},
		}},
		50, discardLogger(),
	)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Results[0].SnapshotSaved)
	require.Equal(t, 0, report.Results[0].TradesCached)
	require.Equal(t, int64(42), report.Results[0].TradesTotal)
}

func TestSnapshotter_CountFailureDegradesToBatch(t *testing.T) {
	cache := &stubTradeCache{newPerBatch: 1, countErr: errors.New("db down")}
	s := NewSnapshotter(
		&stubTrackedStore{markets: []domain.TrackedMarket{tracked("m1", "c1", "t1")}},
		&stubSnapshotStore{}, cache,
		&stubBookFetcher{books: map[string]domain.Orderbook{"t1": {}}},
		&stubTradeFetcher{trades: map[string][]polymarket.RawTrade{
			"c1": {{Price: 0.5, Size: 1, Timestamp: polymarket.FlexTimestamp{Epoch: 100}, TransactionHash: "0x1"}},
		}},
		50, discardLogger(),
	)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Results[0].SnapshotSaved)
	require.Equal(t, 1, report.Results[0].TradesCached)
	require.Equal(t, int64(1), report.Results[0].TradesTotal)
}

func TestSnapshotter_ListFailureAborts(t *testing.T) {
	boom := errors.New("db down")
	s := NewSnapshotter(
		&stubTrackedStore{err: boom},
		&stubSnapshotStore{}, &stubTradeCache{},
		&stubBookFetcher{}, &stubTradeFetcher{},
		50, discardLogger(),
	)

	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, boom)
}

package service

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

type stubDataClient struct {
	trades []polymarket.RawTrade
	err    error
	calls  int
}

func (s *stubDataClient) GetTrades(ctx context.Context, conditionID string, limit int) ([]polymarket.RawTrade, error) {
	s.calls++
	return s.trades, s.err
}

type stubTradeCache struct {
	rows []domain.CachedTrade
	err  error
}

func (s *stubTradeCache) UpsertBatch(ctx context.Context, trades []domain.CachedTrade) (int, error) {
	return len(trades), nil
}

func (s *stubTradeCache) ListByCondition(ctx context.Context, conditionID string, opts domain.ListOpts) ([]domain.CachedTrade, error) {
	return s.rows, s.err
}

func (s *stubTradeCache) CountByCondition(ctx context.Context, conditionID string) (int64, error) {
	return int64(len(s.rows)), nil
}

func cachedRow(hash string, epoch int64, price float64) domain.CachedTrade {
	return domain.CachedTrade{
		ConditionID:     "0xcond",
		Side:            domain.SideBuy,
		Outcome:         "YES",
		Price:           price,
		Size:            10,
		Timestamp:       time.Unix(epoch, 0).UTC(),
		TransactionHash: hash,
	}
}

func TestTradeService_CacheWinsOverProvider(t *testing.T) {
	data := &stubDataClient{trades: []polymarket.RawTrade{
		{Price: 0.9, Size: 1, Timestamp: polymarket.FlexTimestamp{Epoch: 500}},
	}}
	cache := &stubTradeCache{rows: []domain.CachedTrade{
		cachedRow("0x1", 100, 0.4),
		cachedRow("0x2", 200, 0.5),
	}}

	svc := NewTradeService(data, cache, 50, discardLogger())
	seq, err := svc.GetSequence(context.Background(), "0xcond", "YES")
	require.NoError(t, err)

	require.Len(t, seq, 2)
	require.Equal(t, 0.4, seq[0].Price)
	require.Equal(t, 0.5, seq[1].Price)
	require.Zero(t, data.calls)
}

func TestTradeService_EmptyCacheFallsBackToProvider(t *testing.T) {
	data := &stubDataClient{trades: []polymarket.RawTrade{
		{Price: 0.6, Size: 2, Timestamp: polymarket.FlexTimestamp{Epoch: 300}},
	}}

	svc := NewTradeService(data, &stubTradeCache{}, 50, discardLogger())
	seq, err := svc.GetSequence(context.Background(), "0xcond", "YES")
	require.NoError(t, err)

	require.Len(t, seq, 1)
	require.Equal(t, 0.6, seq[0].Price)
	require.Equal(t, 1, data.calls)
}

func TestTradeService_CacheErrorDegradesToProvider(t *testing.T) {
	data := &stubDataClient{trades: []polymarket.RawTrade{
		{Price: 0.7, Size: 1, Timestamp: polymarket.FlexTimestamp{Epoch: 400}},
	}}
	cache := &stubTradeCache{err: errors.New("connection refused")}

	svc := NewTradeService(data, cache, 50, discardLogger())
	seq, err := svc.GetSequence(context.Background(), "0xcond", "YES")
	require.NoError(t, err)
	require.Len(t, seq, 1)
	require.Equal(t, 1, data.calls)
}

func TestTradeService_NilCacheGoesLive(t *testing.T) {
	data := &stubDataClient{}
	svc := NewTradeService(data, nil, 50, discardLogger())

	seq, err := svc.GetSequence(context.Background(), "0xcond", "YES")
	require.NoError(t, err)
	require.Empty(t, seq)
	require.Equal(t, 1, data.calls)
}

func TestTradeService_ProviderErrorPropagates(t *testing.T) {
	data := &stubDataClient{err: domain.ErrProviderUnavailable}
	svc := NewTradeService(data, nil, 50, discardLogger())

	_, err := svc.GetSequence(context.Background(), "0xcond", "YES")
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestTradeService_CachedRowsNormalizeIdentically(t *testing.T) {
	maker := "0xd8da6bf26964af9d7eed9e03e53415d37aa96045"
	row := cachedRow("0x1", 100, 0.4)
	row.Maker = &maker

	svc := NewTradeService(&stubDataClient{}, &stubTradeCache{rows: []domain.CachedTrade{row}}, 50, discardLogger())
	seq, err := svc.GetSequence(context.Background(), "0xcond", "YES")
	require.NoError(t, err)
	require.Len(t, seq, 1)

	// The persisted row flowed back through the same address checksumming
	// as a live record would.
	require.NotNil(t, seq[0].Maker)
	require.Equal(t, "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045", *seq[0].Maker)
}

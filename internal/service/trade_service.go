package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
	"github.com/sonpham-org/poly/internal/replay"
)

// TradeFetcher is the slice of the Data client the trade service needs.
type TradeFetcher interface {
	GetTrades(ctx context.Context, conditionID string, limit int) ([]polymarket.RawTrade, error)
}

// TradeService serves the replay read path: the canonical trade sequence
// for a market, preferring the persistent cache and falling back to a live
// provider fetch when nothing is cached yet.
type TradeService struct {
	data       TradeFetcher
	tradeCache domain.TradeCacheStore // nil when running without a database
	tradeLimit int
	logger     *slog.Logger
}

// NewTradeService creates a TradeService. tradeCache may be nil, in which
// case every read goes to the live provider.
func NewTradeService(data TradeFetcher, tradeCache domain.TradeCacheStore, tradeLimit int, logger *slog.Logger) *TradeService {
	if tradeLimit <= 0 {
		tradeLimit = 100
	}
	return &TradeService{
		data:       data,
		tradeCache: tradeCache,
		tradeLimit: tradeLimit,
		logger:     logger,
	}
}

// GetSequence returns the built replay sequence for a condition. Cached
// trades win when present; a cache read failure degrades to the live
// provider rather than erroring. Zero trades is an empty sequence, not an
// error.
func (s *TradeService) GetSequence(ctx context.Context, conditionID, fallbackOutcome string) ([]domain.Trade, error) {
	raws, err := s.rawTrades(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	return replay.BuildSequence(raws, replay.BuildOptions{FallbackOutcome: fallbackOutcome}), nil
}

func (s *TradeService) rawTrades(ctx context.Context, conditionID string) ([]polymarket.RawTrade, error) {
	if s.tradeCache != nil {
		cached, err := s.tradeCache.ListByCondition(ctx, conditionID, domain.ListOpts{})
		switch {
		case err != nil:
			s.logger.Warn("trade cache read failed, falling back to provider",
				slog.String("condition_id", conditionID),
				slog.String("error", err.Error()),
			)
		case len(cached) > 0:
			return cachedToRaw(cached), nil
		}
	}

	raws, err := s.data.GetTrades(ctx, conditionID, s.tradeLimit)
	if err != nil {
		return nil, fmt.Errorf("service: trades for %s: %w", conditionID, err)
	}
	return raws, nil
}

func cachedToRaw(cached []domain.CachedTrade) []polymarket.RawTrade {
	raws := make([]polymarket.RawTrade, 0, len(cached))
	for _, t := range cached {
		raws = append(raws, polymarket.RawFromCached(t))
	}
	return raws
}

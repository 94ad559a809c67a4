// Package service contains the application services that sit between the
// HTTP/WS surface and the provider clients and stores.
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

const (
	marketListTTL = 60 * time.Second
	marketSlugTTL = 30 * time.Second
)

// MarketFetcher is the slice of the Gamma client the market service needs.
type MarketFetcher interface {
	GetMarkets(ctx context.Context, query polymarket.MarketQuery) ([]domain.Market, error)
	GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error)
	GetMarketTokens(ctx context.Context, slug string) (domain.Market, []string, error)
}

// MarketService serves market metadata lookups, memoized against the
// ephemeral cache, and manages tracked markets.
type MarketService struct {
	gamma   MarketFetcher
	tracked domain.TrackedMarketStore
	cache   *memocache.Cache
	logger  *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(gamma MarketFetcher, tracked domain.TrackedMarketStore, cache *memocache.Cache, logger *slog.Logger) *MarketService {
	return &MarketService{
		gamma:   gamma,
		tracked: tracked,
		cache:   cache,
		logger:  logger,
	}
}

// ListMarkets returns markets matching the query, served from the
// ephemeral cache within a short window.
func (s *MarketService) ListMarkets(ctx context.Context, query polymarket.MarketQuery) ([]domain.Market, error) {
	return memocache.WithCache(ctx, s.cache, query.CacheKey(), marketListTTL,
		func(ctx context.Context) ([]domain.Market, error) {
			return s.gamma.GetMarkets(ctx, query)
		})
}

// GetBySlug returns one market's metadata, memoized per slug.
func (s *MarketService) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	return memocache.WithCache(ctx, s.cache, "market:"+slug, marketSlugTTL,
		func(ctx context.Context) (domain.Market, error) {
			return s.gamma.GetMarketBySlug(ctx, slug)
		})
}

// Track registers a market for periodic observation. Tracking an already
// tracked slug refreshes and re-activates it. The provider lookup is
// uncached so the stored token IDs are always current.
func (s *MarketService) Track(ctx context.Context, slug string) (domain.TrackedMarket, error) {
	market, tokens, err := s.gamma.GetMarketTokens(ctx, slug)
	if err != nil {
		return domain.TrackedMarket{}, fmt.Errorf("service: track %s: %w", slug, err)
	}

	tracked, err := s.tracked.Upsert(ctx, domain.TrackedMarket{
		Slug:        market.Slug,
		Question:    market.Question,
		ConditionID: market.ConditionID,
		TokenIDYes:  tokens[0],
		TokenIDNo:   tokens[1],
	})
	if err != nil {
		return domain.TrackedMarket{}, fmt.Errorf("service: track %s: %w", slug, err)
	}

	s.logger.Info("market tracked",
		slog.String("slug", tracked.Slug),
		slog.String("condition_id", tracked.ConditionID),
	)
	return tracked, nil
}

// Untrack deactivates a tracked market so the ingestion job skips it. The
// row and its history are kept.
func (s *MarketService) Untrack(ctx context.Context, slug string) error {
	if err := s.tracked.SetActive(ctx, slug, false); err != nil {
		return fmt.Errorf("service: untrack %s: %w", slug, err)
	}
	s.logger.Info("market untracked", slog.String("slug", slug))
	return nil
}

// GetTracked returns the tracked-market row for a slug.
func (s *MarketService) GetTracked(ctx context.Context, slug string) (domain.TrackedMarket, error) {
	return s.tracked.GetBySlug(ctx, slug)
}

package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sonpham-org/poly/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery, metadata, and search.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MarketQuery holds the optional filters for GetMarkets.
type MarketQuery struct {
	Limit     int
	Offset    int
	Active    *bool
	Closed    *bool
	TagSlug   string
	Order     string
	Ascending *bool
	TextQuery string
}

// CacheKey renders the query as a stable string for memoization.
func (q MarketQuery) CacheKey() string {
	return "markets:" + q.values().Encode()
}

func (q MarketQuery) values() url.Values {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Active != nil {
		params.Set("active", strconv.FormatBool(*q.Active))
	}
	if q.Closed != nil {
		params.Set("closed", strconv.FormatBool(*q.Closed))
	}
	if q.TagSlug != "" {
		params.Set("tag_slug", q.TagSlug)
	}
	if q.Order != "" {
		params.Set("order", q.Order)
	}
	if q.Ascending != nil {
		params.Set("ascending", strconv.FormatBool(*q.Ascending))
	}
	if q.TextQuery != "" {
		params.Set("_q", q.TextQuery)
	}
	return params
}

// GetMarkets returns markets matching the given query filters.
func (g *GammaClient) GetMarkets(ctx context.Context, query MarketQuery) ([]domain.Market, error) {
	u := g.baseURL + "/markets?" + query.values().Encode()

	body, err := doGet(ctx, g.httpClient, u)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToDomainMarket())
	}

	return markets, nil
}

// GetMarketBySlug returns a single market looked up by its URL slug.
// It returns domain.ErrNotFound when no market matches.
func (g *GammaClient) GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	params := url.Values{}
	params.Set("slug", slug)

	u := g.baseURL + "/markets?" + params.Encode()

	body, err := doGet(ctx, g.httpClient, u)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	if len(apiMarkets) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}

	return apiMarkets[0].ToDomainMarket(), nil
}

// GetMarketTokens returns the outcome token IDs for the market with the
// given slug. It surfaces domain.ErrMalformedTokenList when the market
// metadata cannot name at least two outcome tokens.
func (g *GammaClient) GetMarketTokens(ctx context.Context, slug string) (domain.Market, []string, error) {
	params := url.Values{}
	params.Set("slug", slug)

	u := g.baseURL + "/markets?" + params.Encode()

	body, err := doGet(ctx, g.httpClient, u)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.Market{}, nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(apiMarkets) == 0 {
		return domain.Market{}, nil, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}

	tokens, err := apiMarkets[0].TokenIDs()
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("polymarket/gamma: tokens for %s: %w", slug, err)
	}

	return apiMarkets[0].ToDomainMarket(), tokens, nil
}

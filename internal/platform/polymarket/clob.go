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

// ClobClient is the REST client for the read-only endpoints of the
// Polymarket CLOB (Central Limit Order Book) API: order book depth and
// price history. No authentication is required for either.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetOrderbook returns the current depth for one outcome token.
func (c *ClobClient) GetOrderbook(ctx context.Context, tokenID string) (domain.Orderbook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	u := c.baseURL + "/book?" + params.Encode()

	body, err := doGet(ctx, c.httpClient, u)
	if err != nil {
		return domain.Orderbook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var apiBook APIBook
	if err := json.Unmarshal(body, &apiBook); err != nil {
		return domain.Orderbook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	return apiBook.ToDomainOrderbook(), nil
}

// HistoryQuery holds the optional range parameters for GetPriceHistory.
type HistoryQuery struct {
	StartTs  int64
	EndTs    int64
	Fidelity int // sample resolution in minutes
}

// CacheKey renders the token and query as a stable string for memoization.
func (q HistoryQuery) CacheKey(tokenID string) string {
	return "prices:" + tokenID + ":" + q.values(tokenID).Encode()
}

func (q HistoryQuery) values(tokenID string) url.Values {
	params := url.Values{}
	params.Set("market", tokenID)
	params.Set("interval", "all")
	if q.StartTs > 0 {
		params.Set("startTs", strconv.FormatInt(q.StartTs, 10))
	}
	if q.EndTs > 0 {
		params.Set("endTs", strconv.FormatInt(q.EndTs, 10))
	}
	if q.Fidelity > 0 {
		params.Set("fidelity", strconv.Itoa(q.Fidelity))
	}
	return params
}

// GetPriceHistory returns the sampled price series for one outcome token.
// A market with no history yields an empty (non-nil) slice.
func (c *ClobClient) GetPriceHistory(ctx context.Context, tokenID string, query HistoryQuery) ([]domain.PricePoint, error) {
	u := c.baseURL + "/prices-history?" + query.values(tokenID).Encode()

	body, err := doGet(ctx, c.httpClient, u)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get price history %s: %w", tokenID, err)
	}

	var resp priceHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode price history: %w", err)
	}

	if resp.History == nil {
		return []domain.PricePoint{}, nil
	}
	return resp.History, nil
}

package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DataClient is the REST client for the Polymarket Data API, which serves
// recent trade activity per market.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new Data API client.
//
// baseURL is the Data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetTrades returns up to limit recent trades for a market's condition ID.
// The records come back raw; callers run them through the replay
// normalizer before use.
func (d *DataClient) GetTrades(ctx context.Context, conditionID string, limit int) ([]RawTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("market", conditionID)
	params.Set("limit", strconv.Itoa(limit))

	u := d.baseURL + "/trades?" + params.Encode()

	body, err := doGet(ctx, d.httpClient, u)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get trades %s: %w", conditionID, err)
	}

	// The Data API returns a plain array; tolerate anything else as empty.
	var trades []RawTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return []RawTrade{}, nil
	}
	return trades, nil
}

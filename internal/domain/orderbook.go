package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Orderbook is the live depth for one outcome token as served by the CLOB
// API, with bids and asks ordered best-first.
type Orderbook struct {
	Market    string       `json:"market"`
	AssetID   string       `json:"asset_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// OrderbookSnapshot is a point-in-time depth capture persisted by the
// ingestion job, one row per cycle per tracked market. Immutable once
// written.
type OrderbookSnapshot struct {
	ID         int64        `json:"id"`
	TokenID    string       `json:"tokenId"`
	MarketSlug string       `json:"marketSlug"`
	Timestamp  time.Time    `json:"timestamp"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	Spread     float64      `json:"spread"`
	Midpoint   float64      `json:"midpoint"`
}

// PricePoint is one sample in a token's price-history series.
type PricePoint struct {
	T int64   `json:"t"` // epoch seconds
	P float64 `json:"p"` // price
}

// BookStats derives best bid, best ask, spread, and midpoint from depth
// levels. An empty bid side yields bestBid = 0 and an empty ask side
// yields bestAsk = 1, the maximal-spread sentinel asserting that absent
// liquidity is itself a fact worth recording.
func BookStats(bids, asks []PriceLevel) (bestBid, bestAsk, spread, midpoint float64) {
	bestBid = 0
	if len(bids) > 0 {
		bestBid = bids[0].Price
	}
	bestAsk = 1
	if len(asks) > 0 {
		bestAsk = asks[0].Price
	}
	spread = bestAsk - bestBid
	midpoint = (bestBid + bestAsk) / 2
	return bestBid, bestAsk, spread, midpoint
}

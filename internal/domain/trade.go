package domain

import "time"

// TradeSide is the taker direction of a trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Trade is one economic event in a market's history, normalized into the
// canonical shape regardless of which provider schema it came from. Trades
// are never mutated after creation; they are appended to a store or held in
// an in-memory sequence.
type Trade struct {
	// ID is the position of the trade within one built sequence. It is
	// assigned by the sequence builder after sorting and is only
	// meaningful within that sequence.
	ID int `json:"id"`

	Side    TradeSide `json:"side"`
	Outcome string    `json:"outcome"`

	// Price is the traded price in [0, 1], the cents-equivalent
	// probability of the outcome.
	Price float64 `json:"price"`
	Size  float64 `json:"size"`

	// USDCAmount is recomputed as Price * Size during normalization,
	// never trusted from the source.
	USDCAmount float64 `json:"usdcAmount"`

	Timestamp time.Time `json:"timestamp"`

	Maker           *string `json:"maker"`
	Taker           *string `json:"taker"`
	TransactionHash *string `json:"transactionHash"`

	// IsMint is true when the trade represents new-share creation
	// (a collateral split) rather than a transfer between holders.
	IsMint bool `json:"isMint"`

	// PriceImpact is the signed price delta versus the immediately
	// preceding trade in the sequence; nil for the first trade.
	PriceImpact *float64 `json:"priceImpact,omitempty"`
}

// CachedTrade is the persisted form of a Trade plus its owning market
// identifiers. Rows are unique on (TransactionHash, ConditionID).
type CachedTrade struct {
	ID              int64     `json:"id"`
	ConditionID     string    `json:"conditionId"`
	MarketSlug      string    `json:"marketSlug"`
	Side            TradeSide `json:"side"`
	Outcome         string    `json:"outcome"`
	Price           float64   `json:"price"`
	Size            float64   `json:"size"`
	USDCAmount      float64   `json:"usdcAmount"`
	Timestamp       time.Time `json:"timestamp"`
	Maker           *string   `json:"maker"`
	Taker           *string   `json:"taker"`
	TransactionHash string    `json:"transactionHash"`
	IsMint          bool      `json:"isMint"`
}

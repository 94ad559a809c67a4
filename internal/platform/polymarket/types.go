package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sonpham-org/poly/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// FlexFloat unmarshals from a JSON number or a numeric string. The Data API
// sends prices and sizes as numbers while cached rows re-served as JSON may
// carry them as strings.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(n)
	return nil
}

// FlexTimestamp holds a trade timestamp that may arrive as an epoch-seconds
// number, a numeric string, or a date string. It preserves whichever form
// was sent so the normalizer can apply its resolution order.
type FlexTimestamp struct {
	Epoch int64  // set when the source sent a number (or numeric string)
	Text  string // set when the source sent a non-numeric string
}

func (t *FlexTimestamp) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		t.Epoch = int64(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		t.Epoch = n
		return nil
	}
	t.Text = s
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Slug          string    `json:"slug"`
	ConditionID   string    `json:"conditionId"`
	Description   string    `json:"description"`
	Outcomes      string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs  string    `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	Volume        FlexFloat `json:"volume"`
	Volume24hr    FlexFloat `json:"volume24hr"`
	Liquidity     FlexFloat `json:"liquidity"`
	Image         string    `json:"image"`
	Icon          string    `json:"icon"`
	Category      string    `json:"category"`
	Active        flexBool  `json:"active"` // API may send bool or "true"/"false" string
	Closed        bool      `json:"closed"`
	EndDate       string    `json:"endDate"`
}

// ToDomainMarket converts an APIMarket into a domain.Market, decoding the
// JSON-encoded string-array fields the Gamma API uses for outcomes, prices,
// and token IDs. Undecodable fields are left empty rather than failing the
// whole market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	out := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		Description: m.Description,
		Volume:      float64(m.Volume),
		Volume24hr:  float64(m.Volume24hr),
		Liquidity:   float64(m.Liquidity),
		Image:       m.Image,
		Category:    m.Category,
		Active:      bool(m.Active),
		Closed:      m.Closed,
		EndDate:     m.EndDate,
	}

	_ = json.Unmarshal([]byte(m.Outcomes), &out.Outcomes)
	_ = json.Unmarshal([]byte(m.ClobTokenIDs), &out.TokenIDs)

	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err == nil {
		out.Prices = make([]float64, 0, len(prices))
		for _, p := range prices {
			v, _ := strconv.ParseFloat(p, 64)
			out.Prices = append(out.Prices, v)
		}
	}

	return out
}

// TokenIDs decodes the market's CLOB token list. It returns
// domain.ErrMalformedTokenList when the field does not decode or names
// fewer than two outcome tokens.
func (m *APIMarket) TokenIDs() ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return nil, domain.ErrMalformedTokenList
	}
	if len(ids) < 2 {
		return nil, domain.ErrMalformedTokenList
	}
	return ids, nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBookLevel is one depth level as served by the CLOB book endpoint,
// with price and size as decimal strings.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the CLOB order book response for one outcome token.
type APIBook struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
	Hash      string         `json:"hash"`
	Timestamp string         `json:"timestamp"` // epoch milliseconds
}

// ToDomainOrderbook converts the book DTO, parsing level strings to floats.
func (b *APIBook) ToDomainOrderbook() domain.Orderbook {
	book := domain.Orderbook{
		Market:  b.Market,
		AssetID: b.AssetID,
		Bids:    toPriceLevels(b.Bids),
		Asks:    toPriceLevels(b.Asks),
	}
	if ms, err := strconv.ParseInt(b.Timestamp, 10, 64); err == nil {
		book.Timestamp = time.UnixMilli(ms)
	}
	return book
}

func toPriceLevels(levels []APIBookLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, l := range levels {
		price, _ := strconv.ParseFloat(l.Price, 64)
		size, _ := strconv.ParseFloat(l.Size, 64)
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out
}

// priceHistoryResponse wraps the CLOB prices-history payload.
type priceHistoryResponse struct {
	History []domain.PricePoint `json:"history"`
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// RawTrade is one trade record as returned by the Data API, or re-served
// from the persistent cache. The two sources name the same concepts
// differently (proxyWallet vs maker_address/owner, transactionHash vs
// transaction_hash, timestamp vs match_time), so RawTrade carries every
// variant and leaves reconciliation to the normalizer.
type RawTrade struct {
	ProxyWallet     string        `json:"proxyWallet"`
	Side            string        `json:"side"`
	Asset           string        `json:"asset"`
	ConditionID     string        `json:"conditionId"`
	Size            FlexFloat     `json:"size"`
	Price           FlexFloat     `json:"price"`
	Timestamp       FlexTimestamp `json:"timestamp"`
	Title           string        `json:"title"`
	Slug            string        `json:"slug"`
	Outcome         string        `json:"outcome"`
	OutcomeIndex    int           `json:"outcomeIndex"`
	TransactionHash string        `json:"transactionHash"`
	Pseudonym       string        `json:"pseudonym"`

	// Older Data API format and cache-store export shape.
	MatchTime    string `json:"match_time"`
	Owner        string `json:"owner"`
	MakerAddress string `json:"maker_address"`
	TxHashSnake  string `json:"transaction_hash"`
	Type         string `json:"type"` // "MINT" marks a collateral split
	IsMint       bool   `json:"isMint"`
}

// RawFromCached re-expresses a persisted trade row as a RawTrade in the
// cache-export shape (snake_case aliases), so cached and live trades flow
// through the same normalization path.
func RawFromCached(t domain.CachedTrade) RawTrade {
	raw := RawTrade{
		ConditionID: t.ConditionID,
		Side:        string(t.Side),
		Outcome:     t.Outcome,
		Size:        FlexFloat(t.Size),
		Price:       FlexFloat(t.Price),
		Timestamp:   FlexTimestamp{Epoch: t.Timestamp.Unix()},
		TxHashSnake: t.TransactionHash,
		IsMint:      t.IsMint,
	}
	if t.Maker != nil {
		raw.MakerAddress = *t.Maker
	}
	if t.Taker != nil {
		raw.Owner = *t.Taker
	}
	return raw
}

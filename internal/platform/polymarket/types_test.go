package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sonpham-org/poly/internal/domain"
)

func TestRawTrade_DecodesBothSchemas(t *testing.T) {
	live := `{
		"proxyWallet": "0xabc",
		"side": "BUY",
		"conditionId": "0xcond",
		"size": 150.5,
		"price": 0.62,
		"timestamp": 1700000000,
		"outcome": "Yes",
		"transactionHash": "0xhash"
	}`
	var raw RawTrade
	require.NoError(t, json.Unmarshal([]byte(live), &raw))
	require.Equal(t, "0xabc", raw.ProxyWallet)
	require.Equal(t, FlexFloat(0.62), raw.Price)
	require.Equal(t, int64(1700000000), raw.Timestamp.Epoch)
	require.Equal(t, "0xhash", raw.TransactionHash)

	cached := `{
		"maker_address": "0xmaker",
		"owner": "0xowner",
		"transaction_hash": "0xhash2",
		"price": "0.4",
		"size": "25",
		"match_time": "2024-01-15 09:30:00",
		"type": "MINT"
	}`
	raw = RawTrade{}
	require.NoError(t, json.Unmarshal([]byte(cached), &raw))
	require.Equal(t, "0xmaker", raw.MakerAddress)
	require.Equal(t, "0xowner", raw.Owner)
	require.Equal(t, "0xhash2", raw.TxHashSnake)
	require.Equal(t, FlexFloat(0.4), raw.Price)
	require.Equal(t, FlexFloat(25), raw.Size)
	require.Equal(t, "2024-01-15 09:30:00", raw.MatchTime)
	require.Equal(t, "MINT", raw.Type)
}

func TestFlexTimestamp_NumericString(t *testing.T) {
	var raw RawTrade
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"1700000000"}`), &raw))
	require.Equal(t, int64(1700000000), raw.Timestamp.Epoch)
	require.Empty(t, raw.Timestamp.Text)

	raw = RawTrade{}
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2024-01-15T09:30:00Z"}`), &raw))
	require.Zero(t, raw.Timestamp.Epoch)
	require.Equal(t, "2024-01-15T09:30:00Z", raw.Timestamp.Text)
}

func TestAPIMarket_TokenIDs(t *testing.T) {
	m := APIMarket{ClobTokenIDs: `["111","222"]`}
	ids, err := m.TokenIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"111", "222"}, ids)

	m = APIMarket{ClobTokenIDs: `["only-one"]`}
	_, err = m.TokenIDs()
	require.ErrorIs(t, err, domain.ErrMalformedTokenList)

	m = APIMarket{ClobTokenIDs: `not json`}
	_, err = m.TokenIDs()
	require.ErrorIs(t, err, domain.ErrMalformedTokenList)

	m = APIMarket{}
	_, err = m.TokenIDs()
	require.ErrorIs(t, err, domain.ErrMalformedTokenList)
}

func TestAPIMarket_ToDomainMarket(t *testing.T) {
	payload := `{
		"id": "12",
		"question": "Will it rain?",
		"slug": "will-it-rain",
		"conditionId": "0xcond",
		"outcomes": "[\"Yes\",\"No\"]",
		"outcomePrices": "[\"0.7\",\"0.3\"]",
		"clobTokenIds": "[\"111\",\"222\"]",
		"volume": "12345.6",
		"active": "true",
		"closed": false
	}`
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(payload), &m))

	dm := m.ToDomainMarket()
	require.Equal(t, "will-it-rain", dm.Slug)
	require.Equal(t, []string{"Yes", "No"}, dm.Outcomes)
	require.Equal(t, []string{"111", "222"}, dm.TokenIDs)
	require.Equal(t, []float64{0.7, 0.3}, dm.Prices)
	require.Equal(t, 12345.6, dm.Volume)
	require.True(t, dm.Active)
}

func TestAPIBook_ToDomainOrderbook(t *testing.T) {
	payload := `{
		"market": "0xcond",
		"asset_id": "111",
		"bids": [{"price": "0.45", "size": "100"}],
		"asks": [{"price": "0.55", "size": "80"}],
		"timestamp": "1700000000000"
	}`
	var b APIBook
	require.NoError(t, json.Unmarshal([]byte(payload), &b))

	book := b.ToDomainOrderbook()
	require.Equal(t, 0.45, book.Bids[0].Price)
	require.Equal(t, 100.0, book.Bids[0].Size)
	require.Equal(t, 0.55, book.Asks[0].Price)
	require.Equal(t, time.UnixMilli(1700000000000), book.Timestamp)
}

func TestRawFromCached_RoundTrip(t *testing.T) {
	maker := "0xmaker"
	taker := "0xtaker"
	row := domain.CachedTrade{
		ConditionID:     "0xcond",
		Side:            domain.SideSell,
		Outcome:         "NO",
		Price:           0.3,
		Size:            40,
		Timestamp:       time.Unix(1700000000, 0).UTC(),
		Maker:           &maker,
		Taker:           &taker,
		TransactionHash: "0xhash",
		IsMint:          true,
	}

	raw := RawFromCached(row)
	require.Equal(t, "SELL", raw.Side)
	require.Equal(t, FlexFloat(0.3), raw.Price)
	require.Equal(t, int64(1700000000), raw.Timestamp.Epoch)
	require.Equal(t, "0xmaker", raw.MakerAddress)
	require.Equal(t, "0xtaker", raw.Owner)
	require.Equal(t, "0xhash", raw.TxHashSnake)
	require.True(t, raw.IsMint)
}

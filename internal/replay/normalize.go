// Package replay implements the market activity reconciliation core: the
// record normalizer, the sequence builder, and the playback controller.
// Everything here is free of I/O; raw records come in from the platform
// clients or the persistent cache and leave as canonical trades.
package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
)

// candidate is one source field for a logical trade attribute. The live
// Data API and the persisted cache name the same concepts differently, so
// each logical field is resolved from an ordered list of candidates where
// the first non-empty value wins.
type candidate struct {
	field string
	value string
}

// firstPresent returns the value of the first candidate that is non-empty.
func firstPresent(cands ...candidate) (string, bool) {
	for _, c := range cands {
		if c.value != "" {
			return c.value, true
		}
	}
	return "", false
}

// timestampLayouts are tried in order when a record carries a string
// timestamp instead of epoch seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// resolveTimestamp applies the timestamp resolution order: a numeric
// epoch-seconds field converts directly; otherwise the match-time (or
// fallback string timestamp) field is parsed. Records that yield neither
// are rejected with domain.ErrInvalidTimestamp.
func resolveTimestamp(raw polymarket.RawTrade) (time.Time, error) {
	if raw.Timestamp.Epoch > 0 {
		return time.Unix(raw.Timestamp.Epoch, 0).UTC(), nil
	}

	s, ok := firstPresent(
		candidate{"match_time", raw.MatchTime},
		candidate{"timestamp", raw.Timestamp.Text},
	)
	if !ok {
		return time.Time{}, domain.ErrInvalidTimestamp
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidTimestamp, s)
}

// normalizeAddress rewrites hex wallet addresses into their EIP-55
// checksummed form so the two provider schemas compare equal. Identifiers
// that are not hex addresses (pseudonyms, empty strings) pass through.
func normalizeAddress(s string) string {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s).Hex()
	}
	return s
}

// Normalize converts one raw record of unknown origin schema into a
// canonical Trade, or rejects it. The only rejection cause is an
// unresolvable timestamp. The returned Trade has ID 0 and no PriceImpact;
// both are assigned by BuildSequence.
//
// fallbackOutcome is used when the record carries no outcome label, e.g.
// the primary outcome of the market being replayed.
func Normalize(raw polymarket.RawTrade, fallbackOutcome string) (domain.Trade, error) {
	ts, err := resolveTimestamp(raw)
	if err != nil {
		return domain.Trade{}, err
	}

	side := domain.SideBuy
	if strings.EqualFold(raw.Side, string(domain.SideSell)) {
		side = domain.SideSell
	}

	outcome := raw.Outcome
	if outcome == "" {
		outcome = fallbackOutcome
	}

	price := float64(raw.Price)
	size := float64(raw.Size)

	t := domain.Trade{
		Side:    side,
		Outcome: outcome,
		Price:   price,
		Size:    size,
		// Recomputed here regardless of what the source claims, so the
		// derived amount stays consistent with price and size.
		USDCAmount: price * size,
		Timestamp:  ts,
		IsMint:     raw.Type == "MINT" || raw.IsMint,
	}

	if maker, ok := firstPresent(
		candidate{"proxyWallet", raw.ProxyWallet},
		candidate{"maker_address", raw.MakerAddress},
	); ok {
		v := normalizeAddress(maker)
		t.Maker = &v
	}

	if taker, ok := firstPresent(
		candidate{"proxyWallet", raw.ProxyWallet},
		candidate{"owner", raw.Owner},
	); ok {
		v := normalizeAddress(taker)
		t.Taker = &v
	}

	if hash, ok := firstPresent(
		candidate{"transactionHash", raw.TransactionHash},
		candidate{"transaction_hash", raw.TxHashSnake},
	); ok {
		t.TransactionHash = &hash
	}

	return t, nil
}

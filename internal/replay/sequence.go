package replay

import (
	"sort"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
)

// BuildOptions tunes the sequence builder.
type BuildOptions struct {
	// FallbackOutcome labels trades whose record carries no outcome,
	// typically the primary outcome of the market under replay.
	FallbackOutcome string
}

// BuildSequence normalizes a batch of raw trades into the canonical
// time-ordered sequence. Records that fail normalization (invalid
// timestamp) are silently dropped: upstream data is known to be
// occasionally malformed and this is a best-effort reconstruction, not a
// strict validator.
//
// The output is sorted ascending by timestamp with a stable sort, so
// trades sharing a timestamp keep their input order and the result is
// deterministic for a fixed input. IDs are assigned as the post-sort
// 0-based index; they are positional and only meaningful within this one
// sequence. PriceImpact of trade i is the signed price delta versus trade
// i-1 and is nil for the first trade.
func BuildSequence(raws []polymarket.RawTrade, opts BuildOptions) []domain.Trade {
	trades := make([]domain.Trade, 0, len(raws))
	for _, raw := range raws {
		t, err := Normalize(raw, opts.FallbackOutcome)
		if err != nil {
			continue
		}
		trades = append(trades, t)
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})

	for i := range trades {
		trades[i].ID = i
		if i > 0 {
			impact := trades[i].Price - trades[i-1].Price
			trades[i].PriceImpact = &impact
		}
	}

	return trades
}

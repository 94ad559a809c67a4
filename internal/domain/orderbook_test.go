package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBookStats(t *testing.T) {
	bids := []PriceLevel{{Price: 0.45, Size: 100}, {Price: 0.40, Size: 50}}
	asks := []PriceLevel{{Price: 0.55, Size: 80}, {Price: 0.60, Size: 20}}

	bestBid, bestAsk, spread, midpoint := BookStats(bids, asks)
	require.Equal(t, 0.45, bestBid)
	require.Equal(t, 0.55, bestAsk)
	require.InDelta(t, 0.10, spread, 1e-9)
	require.InDelta(t, 0.50, midpoint, 1e-9)
}

func TestBookStats_EmptySides(t *testing.T) {
	bestBid, bestAsk, spread, midpoint := BookStats(nil, nil)
	require.Equal(t, 0.0, bestBid)
	require.Equal(t, 1.0, bestAsk)
	require.Equal(t, 1.0, spread)
	require.Equal(t, 0.5, midpoint)

	// One-sided books fall back on that side only.
	bestBid, bestAsk, _, _ = BookStats([]PriceLevel{{Price: 0.3, Size: 1}}, nil)
	require.Equal(t, 0.3, bestBid)
	require.Equal(t, 1.0, bestAsk)
}

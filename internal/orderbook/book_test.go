package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
)

func testPairConfig() domain.PairConfig {
	return domain.PairConfig{
		Pair:       "BTC-USD",
		TickSize:   decimal.NewFromInt(0, 2),
		LotSize:    decimal.NewFromInt(0, 4),
		PriceScale: 2,
		QtyScale:   4,
	}
}

func TestBookRestingAndRemove(t *testing.T) {
	b := NewBook(testPairConfig())
	order := newOrder(t, "o1", domain.SideBuy, "100.00", "1")
	b.Bids.Insert(order)

	found, ok := b.FindResting("o1")
	require.True(t, ok)
	assert.Equal(t, "o1", found.OrderID)

	removed, ok := b.RemoveResting("o1")
	require.True(t, ok)
	assert.Equal(t, "o1", removed.OrderID)
	_, ok = b.FindResting("o1")
	assert.False(t, ok)
}

func TestBookDepthSnapshot(t *testing.T) {
	b := NewBook(testPairConfig())
	b.Bids.Insert(newOrder(t, "b1", domain.SideBuy, "100.00", "1"))
	b.Asks.Insert(newOrder(t, "a1", domain.SideSell, "101.00", "2"))
	b.RecordTrade(mustPrice(t, "100.50"))

	snap := b.DepthSnapshot(10)
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, "100.00", snap.Bids[0].Price)
	assert.Equal(t, "101.00", snap.Asks[0].Price)
	assert.True(t, snap.HasLast)
	assert.Equal(t, "100.50", snap.LastPrice)
}

func TestBookOppositeLadder(t *testing.T) {
	b := NewBook(testPairConfig())
	assert.Same(t, b.Asks, b.OppositeLadder(domain.SideBuy))
	assert.Same(t, b.Bids, b.OppositeLadder(domain.SideSell))
}

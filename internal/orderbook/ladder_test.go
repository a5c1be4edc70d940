package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
)

func mustPrice(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s, 2)
	require.NoError(t, err)
	return d
}

func mustQty(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s, 4)
	require.NoError(t, err)
	return d
}

func newOrder(t *testing.T, id string, side domain.Side, price, qty string) *domain.Order {
	t.Helper()
	return &domain.Order{
		OrderID:       id,
		Pair:          "BTC-USD",
		Side:          side,
		Kind:          domain.KindLimit,
		LimitPrice:    mustPrice(t, price),
		HasLimitPrice: true,
		TimeInForce:   domain.TIFGTC,
		OriginalQty:   mustQty(t, qty),
		RemainingQty:  mustQty(t, qty),
		State:         domain.StateOpen,
		CreatedAt:     time.Unix(0, 0),
		UpdatedAt:     time.Unix(0, 0),
	}
}

func TestLadderBestIsHighestBidLowestAsk(t *testing.T) {
	bids := NewLadder(domain.SideBuy)
	bids.Insert(newOrder(t, "b1", domain.SideBuy, "100.00", "1"))
	bids.Insert(newOrder(t, "b2", domain.SideBuy, "101.00", "1"))
	bids.Insert(newOrder(t, "b3", domain.SideBuy, "99.00", "1"))

	best, ok := bids.Best()
	require.True(t, ok)
	assert.Equal(t, "101.00", best.Price.String())

	asks := NewLadder(domain.SideSell)
	asks.Insert(newOrder(t, "a1", domain.SideSell, "105.00", "1"))
	asks.Insert(newOrder(t, "a2", domain.SideSell, "103.00", "1"))
	bestAsk, ok := asks.Best()
	require.True(t, ok)
	assert.Equal(t, "103.00", bestAsk.Price.String())
}

func TestLadderFIFOWithinLevel(t *testing.T) {
	l := NewLadder(domain.SideBuy)
	l.Insert(newOrder(t, "first", domain.SideBuy, "100.00", "1"))
	l.Insert(newOrder(t, "second", domain.SideBuy, "100.00", "2"))

	level, ok := l.Best()
	require.True(t, ok)
	front := level.Orders.Front().Value.(*domain.Order)
	assert.Equal(t, "first", front.OrderID)
	assert.Equal(t, "3.0000", level.TotalQty.String())
}

func TestLadderRemoveDropsEmptyLevel(t *testing.T) {
	l := NewLadder(domain.SideBuy)
	l.Insert(newOrder(t, "only", domain.SideBuy, "100.00", "1"))
	_, ok := l.Remove("only")
	require.True(t, ok)
	assert.Equal(t, 0, l.Len())
	_, ok = l.Best()
	assert.False(t, ok)
}

func TestLadderRemoveUnknownOrder(t *testing.T) {
	l := NewLadder(domain.SideBuy)
	_, ok := l.Remove("missing")
	assert.False(t, ok)
}

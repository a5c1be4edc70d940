package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obmatch/matchcore/internal/domain"
)

func newStopOrder(t *testing.T, id string, side domain.Side, stop string) *domain.Order {
	t.Helper()
	return &domain.Order{
		OrderID:      id,
		Pair:         "BTC-USD",
		Side:         side,
		Kind:         domain.KindStop,
		StopPrice:    mustPrice(t, stop),
		HasStopPrice: true,
		TimeInForce:  domain.TIFGTC,
		OriginalQty:  mustQty(t, "1"),
		RemainingQty: mustQty(t, "1"),
		State:        domain.StatePendingTrigger,
		CreatedAt:    time.Unix(0, 0),
		UpdatedAt:    time.Unix(0, 0),
	}
}

func TestStopIndexBuyTriggersOnRise(t *testing.T) {
	idx := NewStopIndex()
	idx.Add(newStopOrder(t, "buystop", domain.SideBuy, "100.00"))

	fired := idx.Triggered(mustPrice(t, "99.99"))
	assert.Empty(t, fired)

	fired = idx.Triggered(mustPrice(t, "100.00"))
	require.Len(t, fired, 1)
	assert.Equal(t, "buystop", fired[0].OrderID)
	assert.Equal(t, 0, idx.Len())
}

func TestStopIndexSellTriggersOnFall(t *testing.T) {
	idx := NewStopIndex()
	idx.Add(newStopOrder(t, "sellstop", domain.SideSell, "90.00"))

	fired := idx.Triggered(mustPrice(t, "90.01"))
	assert.Empty(t, fired)

	fired = idx.Triggered(mustPrice(t, "90.00"))
	require.Len(t, fired, 1)
	assert.Equal(t, "sellstop", fired[0].OrderID)
}

func TestStopIndexRemove(t *testing.T) {
	idx := NewStopIndex()
	idx.Add(newStopOrder(t, "pending", domain.SideBuy, "100.00"))
	o, ok := idx.Remove("pending")
	require.True(t, ok)
	assert.Equal(t, "pending", o.OrderID)
	assert.Equal(t, 0, idx.Len())

	fired := idx.Triggered(mustPrice(t, "200.00"))
	assert.Empty(t, fired)
}

func TestStopIndexFIFOWithinPrice(t *testing.T) {
	idx := NewStopIndex()
	idx.Add(newStopOrder(t, "first", domain.SideBuy, "100.00"))
	idx.Add(newStopOrder(t, "second", domain.SideBuy, "100.00"))

	fired := idx.Triggered(mustPrice(t, "100.00"))
	require.Len(t, fired, 2)
	assert.Equal(t, "first", fired[0].OrderID)
	assert.Equal(t, "second", fired[1].OrderID)
}

package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
	"github.com/obmatch/matchcore/internal/idgen"
	"github.com/obmatch/matchcore/internal/selftrade"
)

type recordingSink struct {
	events []domain.Event
}

func (r *recordingSink) Publish(ev domain.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) byType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() domain.PairConfig {
	return domain.PairConfig{
		Pair:       "BTC-USD",
		TickSize:   decimal.NewFromInt(0, 2),
		LotSize:    decimal.NewFromInt(0, 4),
		PriceScale: 2,
		QtyScale:   4,
	}
}

func newMatcher() (*Matcher, *recordingSink) {
	sink := &recordingSink{}
	fixedClock := func() time.Time { return time.Unix(1700000000, 0) }
	m := New(testConfig(), selftrade.SkipMakerPolicy{}, idgen.NewGenerator("ord"), sink, fixedClock)
	return m, sink
}

func price(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s, 2)
	require.NoError(t, err)
	return d
}

func qty(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s, 4)
	require.NoError(t, err)
	return d
}

func limitCmd(t *testing.T, user string, side domain.Side, p, q string, tif domain.TimeInForce) PlaceOrderCommand {
	return PlaceOrderCommand{
		Pair: "BTC-USD", UserID: user, Side: side, Kind: domain.KindLimit,
		TimeInForce: tif, LimitPrice: price(t, p), HasLimitPrice: true, Qty: qty(t, q),
	}
}

func TestLimitOrderRestsWhenNoCross(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "u1", domain.SideBuy, "100.00", "1", domain.TIFGTC)))

	assert.Len(t, sink.byType(domain.EventOrderResting), 1)
	level, ok := m.Book().Bids.Best()
	require.True(t, ok)
	assert.Equal(t, "100.00", level.Price.String())
}

func TestLimitOrdersCrossAndTrade(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "maker", domain.SideSell, "100.00", "1", domain.TIFGTC)))
	require.NoError(t, m.Place(limitCmd(t, "taker", domain.SideBuy, "100.00", "1", domain.TIFGTC)))

	trades := sink.byType(domain.EventTrade)
	require.Len(t, trades, 1)
	assert.Equal(t, "100.00", trades[0].Trade.Price)
	assert.Equal(t, "1.0000", trades[0].Trade.Qty)
	assert.Len(t, sink.byType(domain.EventOrderFilled), 2)
}

func TestMarketOrderNoLiquidityCancels(t *testing.T) {
	m, sink := newMatcher()
	cmd := PlaceOrderCommand{Pair: "BTC-USD", UserID: "u1", Side: domain.SideBuy, Kind: domain.KindMarket, TimeInForce: domain.TIFIOC, Qty: qty(t, "1")}
	require.NoError(t, m.Place(cmd))

	cancels := sink.byType(domain.EventOrderCancelled)
	require.Len(t, cancels, 1)
	assert.Equal(t, domain.CancelReasonMarketNoLiquidity, cancels[0].OrderCancelled.Reason)
}

func TestIOCRemainderCancels(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "maker", domain.SideSell, "100.00", "1", domain.TIFGTC)))
	require.NoError(t, m.Place(limitCmd(t, "taker", domain.SideBuy, "100.00", "2", domain.TIFIOC)))

	trades := sink.byType(domain.EventTrade)
	require.Len(t, trades, 1)
	cancels := sink.byType(domain.EventOrderCancelled)
	require.Len(t, cancels, 1)
	assert.Equal(t, domain.CancelReasonIOCRemainder, cancels[0].OrderCancelled.Reason)
}

func TestFillOrKillRejectsWhenInsufficientLiquidity(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "maker", domain.SideSell, "100.00", "1", domain.TIFGTC)))
	require.NoError(t, m.Place(limitCmd(t, "taker", domain.SideBuy, "100.00", "2", domain.TIFFOK)))

	assert.Empty(t, sink.byType(domain.EventTrade))
	rejected := sink.byType(domain.EventOrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, domain.ReasonFillOrKill, rejected[0].OrderRejected.Reason)
}

func TestFillOrKillFillsWhenLiquiditySufficient(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "maker", domain.SideSell, "100.00", "2", domain.TIFGTC)))
	require.NoError(t, m.Place(limitCmd(t, "taker", domain.SideBuy, "100.00", "1", domain.TIFFOK)))

	assert.Len(t, sink.byType(domain.EventTrade), 1)
	assert.Empty(t, sink.byType(domain.EventOrderRejected))
}

func TestStopOrderTriggersOnTrade(t *testing.T) {
	m, sink := newMatcher()
	stopCmd := PlaceOrderCommand{
		Pair: "BTC-USD", UserID: "watcher", Side: domain.SideBuy, Kind: domain.KindStop,
		TimeInForce: domain.TIFGTC, StopPrice: price(t, "101.00"), HasStopPrice: true, Qty: qty(t, "1"),
	}
	require.NoError(t, m.Place(stopCmd))
	assert.Equal(t, 1, m.Book().Stops.Len())

	require.NoError(t, m.Place(limitCmd(t, "seller1", domain.SideSell, "101.00", "5", domain.TIFGTC)))
	require.NoError(t, m.Place(limitCmd(t, "buyer1", domain.SideBuy, "101.00", "1", domain.TIFGTC)))

	assert.Equal(t, 0, m.Book().Stops.Len())
	trades := sink.byType(domain.EventTrade)
	require.Len(t, trades, 2)
}

func TestSelfTradeSkipsMakerAndContinues(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "same-user", domain.SideSell, "100.00", "1", domain.TIFGTC)))
	require.NoError(t, m.Place(limitCmd(t, "other-maker", domain.SideSell, "100.00", "1", domain.TIFGTC)))
	require.NoError(t, m.Place(limitCmd(t, "same-user", domain.SideBuy, "100.00", "1", domain.TIFGTC)))

	trades := sink.byType(domain.EventTrade)
	require.Len(t, trades, 1)
	cancels := sink.byType(domain.EventOrderCancelled)
	require.Len(t, cancels, 1, "the same-user maker should be skipped (cancelled), not traded against")
}

func TestDuplicateClientOrderIDRejected(t *testing.T) {
	m, sink := newMatcher()
	cmd := limitCmd(t, "u1", domain.SideBuy, "100.00", "1", domain.TIFGTC)
	cmd.ClientOrderID = "client-1"
	require.NoError(t, m.Place(cmd))
	require.NoError(t, m.Place(cmd))

	rejected := sink.byType(domain.EventOrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, domain.ReasonDuplicateClientID, rejected[0].OrderRejected.Reason)
}

func TestTickSizeViolationRejected(t *testing.T) {
	m, sink := newMatcher()
	m.book.Config.TickSize = price(t, "0.50")
	cmd := limitCmd(t, "u1", domain.SideBuy, "100.25", "1", domain.TIFGTC)
	require.NoError(t, m.Place(cmd))

	rejected := sink.byType(domain.EventOrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, domain.ReasonTickLotViolation, rejected[0].OrderRejected.Reason)
}

func TestCancelByOwnerSucceeds(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "u1", domain.SideBuy, "100.00", "1", domain.TIFGTC)))
	resting := sink.byType(domain.EventOrderResting)
	require.Len(t, resting, 1)
	orderID := resting[0].OrderResting.OrderID

	require.NoError(t, m.Cancel(CancelOrderCommand{Pair: "BTC-USD", OrderID: orderID, UserID: "u1"}))
	cancels := sink.byType(domain.EventOrderCancelled)
	require.Len(t, cancels, 1)
	assert.Equal(t, domain.CancelReasonUser, cancels[0].OrderCancelled.Reason)
}

func TestCancelByNonOwnerRejected(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "u1", domain.SideBuy, "100.00", "1", domain.TIFGTC)))
	resting := sink.byType(domain.EventOrderResting)
	orderID := resting[0].OrderResting.OrderID

	require.NoError(t, m.Cancel(CancelOrderCommand{Pair: "BTC-USD", OrderID: orderID, UserID: "intruder"}))
	rejected := sink.byType(domain.EventCancelRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, domain.ReasonUnauthorized, rejected[0].CancelRejected.Reason)
}

func TestModifyLosesTimePriority(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "userA", domain.SideBuy, "100.00", "1", domain.TIFGTC)))
	require.NoError(t, m.Place(limitCmd(t, "userB", domain.SideBuy, "100.00", "1", domain.TIFGTC)))

	restingA := sink.byType(domain.EventOrderResting)[0].OrderResting.OrderID

	require.NoError(t, m.Modify(ModifyOrderCommand{
		Pair: "BTC-USD", OrderID: restingA, UserID: "userA",
		NewQty: qty(t, "1"), HasNewQty: true,
	}))

	require.NoError(t, m.Place(limitCmd(t, "taker", domain.SideSell, "100.00", "1", domain.TIFGTC)))

	trades := sink.byType(domain.EventTrade)
	require.Len(t, trades, 1)

	filled := sink.byType(domain.EventOrderFilled)
	require.Len(t, filled, 2, "the taker and userB's order should be fully filled; userA's modified order still rests behind it")

	stillResting, ok := m.Book().Bids.Best()
	require.True(t, ok, "userA's re-queued order should still be resting")
	assert.Equal(t, "100.00", stillResting.Price.String())
}

func TestModifyRejectsBelowExecutedQty(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "userA", domain.SideSell, "100.00", "2", domain.TIFGTC)))
	restingA := sink.byType(domain.EventOrderResting)[0].OrderResting.OrderID

	require.NoError(t, m.Place(limitCmd(t, "userB", domain.SideBuy, "100.00", "1", domain.TIFGTC)))
	require.Len(t, sink.byType(domain.EventTrade), 1)

	require.NoError(t, m.Modify(ModifyOrderCommand{
		Pair: "BTC-USD", OrderID: restingA, UserID: "userA",
		NewQty: qty(t, "0.5"), HasNewQty: true,
	}))

	rejected := sink.byType(domain.EventModifyRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, domain.ReasonValidation, rejected[0].ModifyRejected.Reason)

	order, ok := m.Book().FindResting(restingA)
	require.True(t, ok)
	assert.Equal(t, "1.0000", order.RemainingQty.String())
}

func TestModifyByNonOwnerRejected(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Place(limitCmd(t, "u1", domain.SideBuy, "100.00", "1", domain.TIFGTC)))
	orderID := sink.byType(domain.EventOrderResting)[0].OrderResting.OrderID

	require.NoError(t, m.Modify(ModifyOrderCommand{
		Pair: "BTC-USD", OrderID: orderID, UserID: "intruder",
		NewQty: qty(t, "2"), HasNewQty: true,
	}))

	rejected := sink.byType(domain.EventModifyRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, domain.ReasonUnauthorized, rejected[0].ModifyRejected.Reason)
}

func TestModifyUnknownOrderRejected(t *testing.T) {
	m, sink := newMatcher()
	require.NoError(t, m.Modify(ModifyOrderCommand{
		Pair: "BTC-USD", OrderID: "does-not-exist", UserID: "u1",
		NewQty: qty(t, "2"), HasNewQty: true,
	}))

	rejected := sink.byType(domain.EventModifyRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, domain.ReasonNotFound, rejected[0].ModifyRejected.Reason)
}

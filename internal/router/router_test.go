package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/architecture/fx/workerpool"
	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
	"github.com/obmatch/matchcore/internal/idgen"
	"github.com/obmatch/matchcore/internal/matcher"
	"github.com/obmatch/matchcore/internal/selftrade"
)

type nopSink struct{}

func (nopSink) Publish(domain.Event) error { return nil }

func newTestRouter(t *testing.T) (*Router, string) {
	t.Helper()
	logger := zap.NewNop()
	pools := workerpool.NewWorkerPoolFactory(workerpool.WorkerPoolParams{Logger: logger})
	r := New(logger, pools)

	cfg := domain.PairConfig{Pair: "BTC-USD", TickSize: decimal.NewFromInt(0, 2), LotSize: decimal.NewFromInt(0, 4), PriceScale: 2, QtyScale: 4}
	m := matcher.New(cfg, selftrade.SkipMakerPolicy{}, idgen.NewGenerator("ord"), nopSink{}, nil)
	r.RegisterPair("BTC-USD", m, 16, 1000)
	return r, "BTC-USD"
}

func TestRouterPlaceRoundTrip(t *testing.T) {
	r, pair := newTestRouter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	price, err := decimal.NewFromString("100.00", 2)
	require.NoError(t, err)
	qty, err := decimal.NewFromString("1", 4)
	require.NoError(t, err)

	err = r.Place(ctx, matcher.PlaceOrderCommand{
		Pair: pair, UserID: "u1", Side: domain.SideBuy, Kind: domain.KindLimit,
		TimeInForce: domain.TIFGTC, LimitPrice: price, HasLimitPrice: true, Qty: qty,
	})
	require.NoError(t, err)
}

func TestRouterUnknownPairErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx := context.Background()
	err := r.Cancel(ctx, matcher.CancelOrderCommand{Pair: "ETH-USD", OrderID: "x", UserID: "u1"})
	assert.Error(t, err)
}

func TestRouterModifyRoundTrip(t *testing.T) {
	r, pair := newTestRouter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	price, err := decimal.NewFromString("100.00", 2)
	require.NoError(t, err)
	qty, err := decimal.NewFromString("1", 4)
	require.NoError(t, err)

	require.NoError(t, r.Place(ctx, matcher.PlaceOrderCommand{
		Pair: pair, UserID: "u1", Side: domain.SideBuy, Kind: domain.KindLimit,
		TimeInForce: domain.TIFGTC, LimitPrice: price, HasLimitPrice: true, Qty: qty,
	}))

	// The router doesn't expose order ids directly; Modify against an id
	// that can't possibly match just needs to prove the command reaches
	// the matcher and returns cleanly rather than erroring at the router
	// layer (the matcher itself emits a ModifyRejected event for unknown
	// ids, which is not an error return).
	err = r.Modify(ctx, matcher.ModifyOrderCommand{
		Pair: pair, OrderID: "unknown-order", UserID: "u1",
		NewQty: qty, HasNewQty: true,
	})
	require.NoError(t, err)
}

func TestRouterModifyUnknownPairErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx := context.Background()
	err := r.Modify(ctx, matcher.ModifyOrderCommand{Pair: "ETH-USD", OrderID: "x", UserID: "u1"})
	assert.Error(t, err)
}

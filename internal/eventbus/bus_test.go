package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/domain"
)

func TestBusPublishSubscribeDelivers(t *testing.T) {
	bus := New(zap.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.Event, 1)
	require.NoError(t, bus.Subscribe(ctx, func(ev domain.Event) error {
		received <- ev
		return nil
	}))

	require.NoError(t, bus.Publish(domain.Event{Pair: "BTC-USD", Seq: 1, Type: domain.EventTrade}))

	select {
	case ev := <-received:
		assert.Equal(t, "BTC-USD", ev.Pair)
		assert.Equal(t, domain.EventTrade, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

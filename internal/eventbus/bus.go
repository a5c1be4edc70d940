// Package eventbus fans matcher-emitted events out to in-process
// subscribers (the read-model indexer, the gateway's WebSocket feed) and,
// through ExternalPublisher, to NATS; the journal and snapshotter are fed
// directly by the engine's sink, not through the bus. Adapted
// from the teacher's internal/architecture/cqrs/eventbus watermill
// adapter: an in-process gochannel publisher/subscriber wrapped behind a
// small EventPublisher/EventHandler pair of interfaces, with an
// additional NATS-backed external fanout for consumers outside this
// process (spec §4.H external subscriber delivery).
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/domain"
)

// topic is the single watermill topic events publish to; subscribers
// filter by pair/type themselves, mirroring the teacher's adapter which
// also multiplexed handlers behind one topic per aggregate kind.
const topic = "matcher.events"

// Handler processes one event. Returning an error does not block the bus;
// the Subscribe receive loop logs the error and nacks the message.
type Handler func(domain.Event) error

// Bus wraps a gochannel Pub/Sub with a small Publish/Subscribe surface
// scoped to domain.Event. Per-pair sequencing is enforced by the Matcher
// already assigning a strictly increasing seq to every event it publishes;
// the bus itself does no gap detection, and a subscriber that needs to
// notice gaps compares the seq it sees.
type Bus struct {
	logger *zap.Logger
	pubsub *gochannel.GoChannel
}

// New builds an in-process event bus. Persistence of delivered-but-
// unacked messages is not attempted here — durability is the journal's
// job (internal/journal), not the bus's.
func New(logger *zap.Logger) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1024,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
	return &Bus{logger: logger, pubsub: pubsub}
}

// Publish serializes ev and sends it on the bus topic.
func (b *Bus) Publish(ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("pair", ev.Pair)
	msg.Metadata.Set("type", string(ev.Type))
	return b.pubsub.Publish(topic, msg)
}

// Subscribe registers handler against every event published from now on.
// It runs the receive loop in its own goroutine and returns immediately;
// cancel ctx to stop it.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("eventbus: subscribe: %w", err)
	}
	go func() {
		for msg := range messages {
			var ev domain.Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Error("eventbus: failed to decode event", zap.Error(err))
				msg.Nack()
				continue
			}
			if err := handler(ev); err != nil {
				b.logger.Error("eventbus: handler failed", zap.Error(err), zap.String("pair", ev.Pair), zap.String("type", string(ev.Type)))
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

// Close releases the underlying pub/sub.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

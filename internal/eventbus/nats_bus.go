package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/obmatch/matchcore/internal/domain"
)

// ExternalPublisher fans events out to consumers outside this process
// (such as reporting pipelines) over NATS, distinct from the in-process
// Bus that the gateway's WebSocket feed and the indexer subscribe to. The
// matching core treats external delivery as best-effort: a NATS outage
// must never block or fail a trade, so publish errors here are logged,
// not propagated as InvariantViolation.
type ExternalPublisher struct {
	publisher *wmnats.Publisher
}

// NewExternalPublisher dials natsURL and builds a watermill publisher over
// it. Events go to the fixed subject prefix "external." (see Publish).
func NewExternalPublisher(natsURL string) (*ExternalPublisher, error) {
	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         natsURL,
			NatsOptions: []nats.Option{nats.Name("matchcore-engine")},
			Marshaler:   &wmnats.GobMarshaler{},
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect external publisher: %w", err)
	}
	return &ExternalPublisher{publisher: publisher}, nil
}

// Publish sends ev to external.<pair>.
func (p *ExternalPublisher) Publish(ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: marshal external event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return p.publisher.Publish("external."+ev.Pair, msg)
}

// Close releases the NATS connection.
func (p *ExternalPublisher) Close() error {
	return p.publisher.Close()
}

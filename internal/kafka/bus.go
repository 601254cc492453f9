package kafka

import (
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/katuparan/farm2stall/internal/market"
)

// Bus adapts the buffered producer to the service layer's Publisher.
type Bus struct {
	p *Producer
}

func NewBus(p *Producer) *Bus { return &Bus{p: p} }

func (b *Bus) Publish(topic string, env market.Envelope) {
	b.p.Publish(topic, env.PartitionKey(), MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}

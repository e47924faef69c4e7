package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// Bus routes envelopes to one producer per topic.
type Bus struct {
	producers map[string]*Producer
}

func NewBus(brokers []string, topics []string, buf int, log *zap.Logger) *Bus {
	b := &Bus{producers: make(map[string]*Producer, len(topics))}
	for _, t := range topics {
		p := NewProducer(brokers, t, buf, log)
		p.Start()
		b.producers[t] = p
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, topic string, key []byte, env orders.Envelope) error {
	p, ok := b.producers[topic]
	if !ok {
		return fmt.Errorf("kafka: no producer for topic %q", topic)
	}
	value, err := Marshal(env)
	if err != nil {
		return err
	}
	return p.Publish(ctx, key, value,
		kafka.Header{Key: HeaderEventType, Value: []byte(env.EventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}

func (b *Bus) Close(ctx context.Context) error {
	var err error
	for t, p := range b.producers {
		if cerr := p.Close(ctx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close producer %s: %w", t, cerr))
		}
	}
	return err
}

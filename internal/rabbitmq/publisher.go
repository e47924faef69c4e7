// Package rabbitmq publishes domain events to a topic exchange. The topic name
// is used as the routing key.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

type Config struct {
	URL      string
	Exchange string
	Retries  int
}

type Publisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publish
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

// Dial connects with quadratic backoff and declares the durable topic exchange.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Publisher, error) {
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("rabbitmq: exchange name cannot be empty")
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 5
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < cfg.Retries; i++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		wait := time.Duration(i*i)*time.Second + time.Second
		log.Warn("rabbitmq dial failed, retrying", zap.Duration("in", wait), zap.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: connect after %d attempts: %w", cfg.Retries, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", cfg.Exchange, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: cfg.Exchange, log: log}, nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, key []byte, env orders.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode %s: %w", env.EventType, err)
	}
	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     env.OccurredAt,
		MessageId:     env.EventID,
		CorrelationId: string(key),
		Type:          env.EventType,
		AppId:         env.Producer,
		Body:          body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, topic, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq: publish %s to %s/%s: %w", env.EventType, p.exchange, topic, err)
	}
	return nil
}

func (p *Publisher) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

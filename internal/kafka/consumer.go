package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil once the message is fully processed.
type Handler func(ctx context.Context, m kafka.Message) error

// reader is the part of *kafka.Reader the consumer drives.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       reader
	workers int
	log     *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log.With(zap.String("topic", topic), zap.String("group", group))}
}

const (
	handleAttempts = 3
	handleBackoff  = 200 * time.Millisecond
	laneBuffer     = 128
)

// Start reads until ctx is done. Each partition is pinned to one worker, so a
// partition's messages are handled and committed in offset order. A message that
// keeps failing is retried in place, then logged and skipped.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, laneBuffer)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			log := c.log.With(zap.Int("worker", id))
			for m := range in {
				if !c.handle(ctx, log, h, m) {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					log.Error("commit failed", zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i, lanes[i])
	}
	defer wg.Wait()
	defer func() {
		for _, l := range lanes {
			close(l)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case lanes[laneFor(m.Partition, len(lanes))] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func laneFor(partition, lanes int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % lanes
}

// handle reports whether the message's offset may be committed. It is false only
// when shutdown interrupted processing.
func (c *Consumer) handle(ctx context.Context, log *zap.Logger, h Handler, m kafka.Message) bool {
	var err error
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		if err = h(ctx, m); err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		log.Warn("handler failed",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(time.Duration(attempt) * handleBackoff):
		case <-ctx.Done():
			return false
		}
	}
	log.Error("skipping message after repeated failures",
		zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
	return true
}

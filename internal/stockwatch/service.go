// Package stockwatch projects inventory.stock events into the Redis low-stock board.
package stockwatch

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-checkout/internal/kafka"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/redisx"
)

type Service struct {
	Board       *redisx.StockBoard
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandleStockEvent: dipasang sebagai handler consumer topic inventory.stock.
func (s *Service) HandleStockEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope; pesan rusak di-skip supaya tidak macet di offset yang sama
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		s.Log.Warn("skip undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	first, err := redisx.MarkOnce(ctx, s.Redis, s.ServiceName, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	log := s.Log.With(zap.String("event_id", env.EventID), zap.String("event_type", env.EventType))
	if err := s.apply(ctx, log, env); err != nil {
		// lepas tanda dedup supaya pesan bisa diproses ulang
		if ferr := redisx.ForgetMark(ctx, s.Redis, s.ServiceName, env.EventID); ferr != nil {
			log.Warn("release dedup mark", zap.Error(ferr))
		}
		return err
	}
	log.Debug("stock event applied")
	return nil
}

func (s *Service) apply(ctx context.Context, log *zap.Logger, env orders.Envelope) error {
	var (
		applied bool
		err     error
	)
	switch env.EventType {
	case orders.EventLowStock:
		p, perr := kafkax.UnwrapPayload[orders.LowStockPayload](env.Payload)
		if perr != nil {
			return nil
		}
		applied, err = s.Board.Record(ctx, redisx.LowStockEntry{
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			Remaining:   p.Remaining,
			MinStock:    p.MinStock,
			At:          asOf(p.AsOf, env),
		})
	case orders.EventStockAdjusted:
		p, perr := kafkax.UnwrapPayload[orders.StockAdjustedPayload](env.Payload)
		if perr != nil {
			return nil
		}
		if p.Quantity < p.MinStock {
			applied, err = s.Board.Record(ctx, redisx.LowStockEntry{
				ProductID: p.ProductID,
				Remaining: p.Quantity,
				MinStock:  p.MinStock,
				At:        asOf(p.AsOf, env),
			})
		} else {
			applied, err = s.Board.Clear(ctx, p.ProductID, asOf(p.AsOf, env))
		}
	default:
		return nil // ignore
	}
	if err == nil && !applied {
		log.Debug("stale stock event dropped")
	}
	return err
}

// asOf prefers the instant the stock level was observed; events without it fall back
// to the envelope time.
func asOf(observed time.Time, env orders.Envelope) time.Time {
	if !observed.IsZero() {
		return observed
	}
	if !env.OccurredAt.IsZero() {
		return env.OccurredAt
	}
	return time.Now().UTC()
}

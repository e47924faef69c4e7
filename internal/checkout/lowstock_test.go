package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	kafkax "github.com/ariefcatur/go-checkout/internal/kafka"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/redisx"
	"github.com/ariefcatur/go-checkout/internal/stockwatch"
	"github.com/ariefcatur/go-checkout/internal/worker"
)

// tickingClock advances one millisecond per call.
func tickingClock(start time.Time) func() time.Time {
	var (
		mu sync.Mutex
		n  int
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return start.Add(time.Duration(n) * time.Millisecond)
	}
}

func (p *fakePublisher) onTopic(topic string) []orders.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []orders.Envelope
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e.Env)
		}
	}
	return out
}

func stockEvent(t *testing.T, envs []orders.Envelope, eventType string) orders.Envelope {
	t.Helper()
	for _, e := range envs {
		if e.EventType == eventType {
			return e
		}
	}
	t.Fatalf("no %s event published", eventType)
	return orders.Envelope{}
}

func TestPlaceOrder_RestockRacingSlowAlertLeavesBoardClear(t *testing.T) {
	// Setup
	h := newHarness(t)
	h.product(1, "Laptop", 5, 2)
	h.notifier.alertDelay = 100 * time.Millisecond
	h.coord.Now = tickingClock(fixedNow)
	pool := worker.NewPool(1, 8, zaptest.NewLogger(t))
	h.coord.Runner = pool

	// Execute: a sale crosses the threshold, then a restock lands while the alert email is still sending
	_, err := h.coord.PlaceOrder(context.Background(), order(line(1, 4)))
	require.NoError(t, err)
	_, err = h.coord.AdjustStock(context.Background(), orders.InventoryRecord{ProductID: 1, Quantity: 50, MinStock: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Close(ctx))

	// Verify: the sale is stamped before the restock
	envs := h.events.onTopic(orders.TopicInventoryStock)
	low, err := kafkax.UnwrapPayload[orders.LowStockPayload](stockEvent(t, envs, orders.EventLowStock).Payload)
	require.NoError(t, err)
	adjusted, err := kafkax.UnwrapPayload[orders.StockAdjustedPayload](stockEvent(t, envs, orders.EventStockAdjusted).Payload)
	require.NoError(t, err)
	assert.True(t, low.AsOf.Before(adjusted.AsOf), "low %v, adjusted %v", low.AsOf, adjusted.AsOf)

	// whichever order the consumer sees them in, the restock wins
	arrivals := map[string][]orders.Envelope{
		"restock first": {stockEvent(t, envs, orders.EventStockAdjusted), stockEvent(t, envs, orders.EventLowStock)},
		"sale first":    {stockEvent(t, envs, orders.EventLowStock), stockEvent(t, envs, orders.EventStockAdjusted)},
	}
	for name, seq := range arrivals {
		t.Run(name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			svc := &stockwatch.Service{Board: &redisx.StockBoard{RDB: rdb}, Redis: rdb, ServiceName: "stockwatch", Log: zaptest.NewLogger(t)}

			for _, env := range seq {
				b, err := kafkax.Marshal(env)
				require.NoError(t, err)
				require.NoError(t, svc.HandleStockEvent(context.Background(), kafkago.Message{Value: b}))
			}

			list, err := svc.Board.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

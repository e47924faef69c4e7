package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

type statusEntry struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StatusCache keeps the latest known status of recently touched orders.
type StatusCache struct{ RDB *redis.Client }

func (c *StatusCache) Get(ctx context.Context, orderID int64) (orders.Status, bool, error) {
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var e statusEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return "", false, err
	}
	return e.Status, true, nil
}

func (c *StatusCache) Set(ctx context.Context, orderID int64, s orders.Status) error {
	b, err := json.Marshal(statusEntry{Status: s, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

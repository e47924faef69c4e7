package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

var ErrRequestInFlight = errors.New("request with this idempotency key is still in progress")

// Idempotency guards order creation keyed by the client's Idempotency-Key header.
type Idempotency struct{ RDB *redis.Client }

// Begin claims key. When the key already completed it returns the recorded order id
// and done=true. A claim held by another request yields ErrRequestInFlight.
func (i *Idempotency) Begin(ctx context.Context, key string) (orderID int64, done bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, key)
	ok, err := i.RDB.SetNX(ctx, k, pendingMarker, TTLIdempotency).Result()
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 0, false, nil
	}

	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry the claim
		return 0, false, ErrRequestInFlight
	}
	if err != nil {
		return 0, false, err
	}
	if v == pendingMarker {
		return 0, false, ErrRequestInFlight
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency record %s: %w", k, err)
	}
	return id, true, nil
}

func (i *Idempotency) Complete(ctx context.Context, key string, orderID int64) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}

// Abort releases a claim so the request can be retried with the same key.
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Err()
}

package redisx

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type LowStockEntry struct {
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Remaining   int       `json:"remaining"`
	MinStock    int       `json:"min_stock"`
	At          time.Time `json:"at"` // stock level as of this instant
}

// applyIfNewer writes or deletes a board field unless a newer version was applied.
// KEYS: board, versions. ARGV: product_id, version (unix micro), entry JSON ("" deletes).
var applyIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[2], ARGV[1])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
if ARGV[3] == '' then
  redis.call('HDEL', KEYS[1], ARGV[1])
else
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
end
return 1
`)

// StockBoard is the set of products currently below their stock threshold.
// Every write carries the instant its stock level was observed; a write older than
// the last one applied for the product is dropped, so late events cannot undo a restock.
type StockBoard struct{ RDB *redis.Client }

// Record puts e on the board as of e.At. applied is false when e was stale.
func (b *StockBoard) Record(ctx context.Context, e LowStockEntry) (applied bool, err error) {
	v, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return b.apply(ctx, e.ProductID, e.At, string(v))
}

// Clear takes productID off the board as of asOf.
func (b *StockBoard) Clear(ctx context.Context, productID int64, asOf time.Time) (applied bool, err error) {
	return b.apply(ctx, productID, asOf, "")
}

func (b *StockBoard) apply(ctx context.Context, productID int64, asOf time.Time, value string) (bool, error) {
	n, err := applyIfNewer.Run(ctx, b.RDB,
		[]string{KeyLowStock, KeyLowStockAsOf},
		strconv.FormatInt(productID, 10), asOf.UnixMicro(), value,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// List returns the board ordered by product id. Undecodable fields are skipped.
func (b *StockBoard) List(ctx context.Context) ([]LowStockEntry, error) {
	all, err := b.RDB.HGetAll(ctx, KeyLowStock).Result()
	if err != nil {
		return nil, err
	}
	out := make([]LowStockEntry, 0, len(all))
	for _, v := range all {
		var e LowStockEntry
		if json.Unmarshal([]byte(v), &e) == nil {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b LowStockEntry) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return out, nil
}

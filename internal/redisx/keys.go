package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{Idempotency-Key} -> "pending" | order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Papan stok menipis: hash stock:low, field product_id -> LowStockEntry (JSON)
	KeyLowStock = "stock:low"

	// Versi terakhir per produk yang sudah diterapkan ke papan: product_id -> unix micro
	KeyLowStockAsOf = "stock:low:asof"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventLowStock           = "LowStock"
	EventStockAdjusted      = "StockAdjusted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "checkout-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id atau product_id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope membungkus payload dengan event_id baru dan versi 1.
func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// ---- Payload tipe per event ----

type LinePayload struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderPlacedPayload struct {
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	SellerID   int64           `json:"seller_id"`
	Lines      []LinePayload   `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

type OrderStatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

// AsOf pada event stok = saat level stok itu diamati (di dalam transaksi / setelah write),
// bukan saat event dikirim. Konsumen memakai ini untuk membuang event yang sudah basi.

type LowStockPayload struct {
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Remaining   int       `json:"remaining"`
	MinStock    int       `json:"min_stock"`
	OrderID     int64     `json:"order_id,omitempty"`
	AsOf        time.Time `json:"as_of"`
}

type StockAdjustedPayload struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"min_stock"`
	AsOf      time.Time `json:"as_of"`
}

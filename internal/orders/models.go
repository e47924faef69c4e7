package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID    int64
	Name  string
	Email string
}

type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

type Order struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	SellerID   int64           `json:"seller_id"`
	Status     Status          `json:"status"` // lihat status.go
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderDetail is an order header together with its lines.
type OrderDetail struct {
	Order
	Lines []OrderLine `json:"lines"`
}

type InventoryRecord struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"min_stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r InventoryRecord) Low() bool { return r.Quantity < r.MinStock }

// StockLevel is the state of an inventory record right after a decrement.
type StockLevel struct {
	ProductID int64
	Available int
	MinStock  int
}

func (s StockLevel) Low() bool { return s.Available < s.MinStock }

package orders

import "context"

// Tx is one unit of work. Writes made through it become visible to other
// readers together on commit, or not at all.
type Tx interface {
	InsertOrder(ctx context.Context, o *Order) error
	InsertLine(ctx context.Context, l *OrderLine) error

	// LockStock takes the inventory rows of productIDs in ascending order.
	LockStock(ctx context.Context, productIDs []int64) error
	// DecrementStock fails with a *StockError when the record is missing or short.
	DecrementStock(ctx context.Context, productID int64, qty int) (StockLevel, error)

	LockOrder(ctx context.Context, orderID int64) (Order, error)
	SetStatus(ctx context.Context, orderID int64, s Status) error
}

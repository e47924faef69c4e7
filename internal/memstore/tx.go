package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

type memTx struct {
	st  *state
	now func() time.Time
}

func (t *memTx) InsertOrder(_ context.Context, o *orders.Order) error {
	t.st.nextOrder++
	o.ID = t.st.nextOrder
	t.st.orders[o.ID] = *o
	return nil
}

func (t *memTx) InsertLine(_ context.Context, l *orders.OrderLine) error {
	if _, ok := t.st.orders[l.OrderID]; !ok {
		return orders.ErrOrderNotFound
	}
	t.st.nextLine++
	l.ID = t.st.nextLine
	t.st.lines[l.OrderID] = append(t.st.lines[l.OrderID], *l)
	return nil
}

// LockStock is a no-op: the store mutex already excludes every other unit of work.
func (t *memTx) LockStock(context.Context, []int64) error { return nil }

func (t *memTx) DecrementStock(_ context.Context, productID int64, qty int) (orders.StockLevel, error) {
	rec, ok := t.st.inventory[productID]
	if !ok {
		return orders.StockLevel{}, &orders.StockError{ProductID: productID, Requested: qty, Err: orders.ErrInventoryNotFound}
	}
	if rec.Quantity < qty {
		return orders.StockLevel{}, &orders.StockError{ProductID: productID, Requested: qty, Available: rec.Quantity, Err: orders.ErrInsufficientStock}
	}
	rec.Quantity -= qty
	rec.UpdatedAt = t.now()
	t.st.inventory[productID] = rec
	return orders.StockLevel{ProductID: productID, Available: rec.Quantity, MinStock: rec.MinStock}, nil
}

func (t *memTx) LockOrder(_ context.Context, orderID int64) (orders.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) SetStatus(_ context.Context, orderID int64, s orders.Status) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = s
	t.st.orders[orderID] = o
	return nil
}

package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

func seeded() *Store {
	s := New()
	s.AddProduct(orders.Product{ID: 1, Name: "Laptop", Price: decimal.NewFromInt(1000)}, 5, 2, true)
	s.AddProduct(orders.Product{ID: 2, Name: "Mouse", Price: decimal.NewFromInt(20)}, 1, 0, true)
	s.AddProduct(orders.Product{ID: 3, Name: "Ghost"}, 0, 0, false)
	return s
}

func TestInTx_CommitPublishesChanges(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	var orderID int64
	err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o := orders.Order{CustomerID: 9, Status: orders.StatusProcessing}
		require.NoError(t, tx.InsertOrder(ctx, &o))
		orderID = o.ID
		require.NoError(t, tx.InsertLine(ctx, &orders.OrderLine{OrderID: o.ID, ProductID: 1, Quantity: 3}))
		lvl, err := tx.DecrementStock(ctx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, orders.StockLevel{ProductID: 1, Available: 2, MinStock: 2}, lvl)
		return nil
	})
	require.NoError(t, err)

	qty, _ := s.Stock(1)
	assert.Equal(t, 2, qty)
	d, err := s.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, d.Lines, 1)
}

func TestInTx_FailureDiscardsEverything(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o := orders.Order{CustomerID: 9}
		require.NoError(t, tx.InsertOrder(ctx, &o))
		_, err := tx.DecrementStock(ctx, 1, 3)
		require.NoError(t, err)
		_, err = tx.DecrementStock(ctx, 2, 2)
		return err
	})
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	qty, _ := s.Stock(1)
	assert.Equal(t, 5, qty)
	assert.Empty(t, s.Orders())
}

func TestDecrementStock_MissingInventory(t *testing.T) {
	s := seeded()
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		_, err := tx.DecrementStock(ctx, 3, 1)
		return err
	})
	var se *orders.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int64(3), se.ProductID)
	assert.ErrorIs(t, err, orders.ErrInventoryNotFound)
}

func TestInTx_ConcurrentDecrementsNeverOverdraw(t *testing.T) {
	s := seeded()
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
				_, err := tx.DecrementStock(ctx, 1, 1)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	qty, _ := s.Stock(1)
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, qty)
}

func TestUpsertInventory(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	rec, err := s.UpsertInventory(ctx, orders.InventoryRecord{ProductID: 3, Quantity: 4, MinStock: 1})
	require.NoError(t, err)
	assert.False(t, rec.UpdatedAt.IsZero())

	_, err = s.UpsertInventory(ctx, orders.InventoryRecord{ProductID: 77, Quantity: 1})
	assert.ErrorIs(t, err, orders.ErrProductNotFound)

	_, err = s.UpsertInventory(ctx, orders.InventoryRecord{ProductID: 1, Quantity: -1})
	assert.Error(t, err)

	list, err := s.ListInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestSetStatus(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	var id int64
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o := orders.Order{Status: orders.StatusProcessing}
		err := tx.InsertOrder(ctx, &o)
		id = o.ID
		return err
	}))
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.SetStatus(ctx, id, orders.StatusShipped)
	}))
	d, err := s.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, d.Status)
}

package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

func TestAdvanceStatus(t *testing.T) {
	h := newHarness(t)
	h.product(1, "Laptop", 5, 0)
	ctx := context.Background()
	conf, err := h.coord.PlaceOrder(ctx, order(line(1, 1)))
	require.NoError(t, err)

	o, err := h.coord.AdvanceStatus(ctx, conf.OrderID, orders.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, o.Status)
	assert.Equal(t, []orders.Status{orders.StatusShipped}, h.notifier.statusEmails)
	assert.Contains(t, h.events.types(), orders.EventOrderStatusChanged)

	_, err = h.coord.AdvanceStatus(ctx, conf.OrderID, orders.StatusCancelled)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	d, err := h.store.GetOrder(ctx, conf.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, d.Status)
}

func TestAdvanceStatus_UnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.AdvanceStatus(context.Background(), 12345, orders.StatusShipped)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestAdjustStock(t *testing.T) {
	h := newHarness(t)
	h.product(1, "Laptop", 0, 2)
	ctx := context.Background()

	rec, err := h.coord.AdjustStock(ctx, orders.InventoryRecord{ProductID: 1, Quantity: 20, MinStock: 3})
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Quantity)
	assert.Equal(t, 20, h.stock(t, 1))
	assert.Equal(t, []string{orders.EventStockAdjusted}, h.events.types())

	_, err = h.coord.AdjustStock(ctx, orders.InventoryRecord{ProductID: 1, Quantity: -1})
	assert.ErrorIs(t, err, orders.ErrInvalidInventory)

	_, err = h.coord.AdjustStock(ctx, orders.InventoryRecord{ProductID: 404, Quantity: 1})
	assert.ErrorIs(t, err, orders.ErrProductNotFound)
}

package checkout

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/observability"
	"github.com/ariefcatur/go-checkout/internal/orders"
)

// AdjustStock sets a product's quantity and threshold (restock or correction) and
// announces the new level so low-stock projections can clear.
func (c *Coordinator) AdjustStock(ctx context.Context, rec orders.InventoryRecord) (orders.InventoryRecord, error) {
	if c.Inventory == nil {
		return orders.InventoryRecord{}, errors.New("inventory writer not configured")
	}
	saved, err := c.Inventory.UpsertInventory(ctx, rec)
	if err != nil {
		return orders.InventoryRecord{}, err
	}
	// taken after the write commits, so it orders after any sale that locked the row before it
	asOf := c.now()
	log := observability.WithTrace(ctx, c.Log).With(zap.Int64("product_id", saved.ProductID))
	log.Info("stock adjusted", zap.Int("quantity", saved.Quantity), zap.Int("min_stock", saved.MinStock))

	c.publish(ctx, log, orders.TopicInventoryStock, saved.ProductID, orders.EventStockAdjusted,
		orders.StockAdjustedPayload{ProductID: saved.ProductID, Quantity: saved.Quantity, MinStock: saved.MinStock, AsOf: asOf})
	return saved, nil
}

package checkout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/notify"
	"github.com/ariefcatur/go-checkout/internal/observability"
	"github.com/ariefcatur/go-checkout/internal/orders"
)

// AdvanceStatus moves an order along its lifecycle. The customer email and the
// OrderStatusChanged event are best-effort and sent after the update commits.
func (c *Coordinator) AdvanceStatus(ctx context.Context, orderID int64, to orders.Status) (orders.Order, error) {
	var (
		o    orders.Order
		from orders.Status
	)
	err := c.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		from = o.Status
		if !orders.CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, from, to)
		}
		if err := tx.SetStatus(ctx, orderID, to); err != nil {
			return err
		}
		o.Status = to
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}

	log := observability.WithTrace(ctx, c.Log).With(zap.Int64("order_id", orderID))
	log.Info("order status changed", zap.String("from", string(from)), zap.String("to", string(to)))

	c.runner().Go(context.WithoutCancel(ctx), func(ctx context.Context) {
		if cust, ok := c.Catalog.Customer(ctx, o.CustomerID); ok && cust.Email != "" {
			if st := c.Notifier.SendStatusChange(ctx, cust.Email, orderID, to); st != notify.StatusDelivered {
				log.Warn("status email not delivered", zap.String("status", string(st)))
			}
		} else {
			log.Info("no customer email on file, skipping status email")
		}
		c.publish(ctx, log, orders.TopicOrderStatus, orderID, orders.EventOrderStatusChanged,
			orders.OrderStatusChangedPayload{OrderID: orderID, From: from, To: to})
	})
	return o, nil
}

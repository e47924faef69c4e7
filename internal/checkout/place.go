package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/invoice"
	"github.com/ariefcatur/go-checkout/internal/notify"
	"github.com/ariefcatur/go-checkout/internal/observability"
	"github.com/ariefcatur/go-checkout/internal/orders"
)

// lowStock is a threshold crossing observed inside the order transaction.
type lowStock struct {
	orders.StockLevel
	AsOf time.Time
}

// placed is what the post-commit pipeline needs to know about a committed order.
type placed struct {
	order   orders.Order
	lines   []orders.OrderLine
	alerts  []lowStock
	contact string
}

// PlaceOrder persists the order, its lines and the stock decrements as one unit of work.
// It returns once that unit is committed; invoice, emails and events run afterwards
// on the Runner and their failures are only logged.
func (c *Coordinator) PlaceOrder(ctx context.Context, req Request) (Confirmation, error) {
	ctx, span := tracer.Start(ctx, "checkout.PlaceOrder", trace.WithAttributes(
		attribute.Int64("customer.id", req.CustomerID),
		attribute.Int("order.lines", len(req.Lines)),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Confirmation{}, err
	}

	p := placed{
		order: orders.Order{
			CustomerID: req.CustomerID,
			SellerID:   c.sellerID(),
			Status:     orders.StatusProcessing,
			Total:      req.Total,
			CreatedAt:  c.now(),
		},
		contact: req.ContactEmail,
	}

	err := c.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		p.lines, p.alerts = p.lines[:0], p.alerts[:0]
		if err := tx.InsertOrder(ctx, &p.order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		// lock every product up front in ascending order so concurrent orders cannot deadlock
		if err := tx.LockStock(ctx, lockOrder(req.Lines)); err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}
		for _, l := range req.Lines {
			line := orders.OrderLine{OrderID: p.order.ID, ProductID: l.ProductID, Quantity: l.Quantity, Subtotal: l.Subtotal}
			if err := tx.InsertLine(ctx, &line); err != nil {
				return fmt.Errorf("insert line for product %d: %w", l.ProductID, err)
			}
			lvl, err := tx.DecrementStock(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			p.lines = append(p.lines, line)
			if lvl.Low() {
				p.alerts = append(p.alerts, lowStock{StockLevel: lvl, AsOf: c.now()})
			}
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.WithTrace(ctx, c.Log).Warn("order rejected",
			zap.Int64("customer_id", req.CustomerID), zap.Error(err))
		return Confirmation{}, err
	}

	span.SetAttributes(attribute.Int64("order.id", p.order.ID))
	observability.WithTrace(ctx, c.Log).Info("order placed",
		zap.Int64("order_id", p.order.ID),
		zap.Int("lines", len(p.lines)),
		zap.Int("low_stock", len(p.alerts)),
	)

	c.runner().Go(context.WithoutCancel(ctx), func(ctx context.Context) { c.afterCommit(ctx, p) })

	return Confirmation{OrderID: p.order.ID, Status: p.order.Status, CreatedAt: p.order.CreatedAt}, nil
}

// classify keeps stock failures as they are and folds everything else into ErrTransactionFailed.
func classify(err error) error {
	if errors.Is(err, orders.ErrInventoryNotFound) || errors.Is(err, orders.ErrInsufficientStock) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
}

func lockOrder(lines []LineRequest) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (c *Coordinator) afterCommit(ctx context.Context, p placed) {
	ctx, span := tracer.Start(ctx, "checkout.afterCommit",
		trace.WithAttributes(attribute.Int64("order.id", p.order.ID)))
	defer span.End()
	log := observability.WithTrace(ctx, c.Log).With(zap.Int64("order_id", p.order.ID))

	names := map[int64]string{}
	name := func(id int64) (string, bool) {
		if n, ok := names[id]; ok {
			return n, n != ""
		}
		n, ok := c.Catalog.ProductName(ctx, id)
		if !ok {
			n = ""
		}
		names[id] = n
		return n, ok
	}

	label := func(id int64) string {
		if n, ok := name(id); ok {
			return n
		}
		return fmt.Sprintf("ID %d", id)
	}

	// events first: they carry AsOf, and a slow SMTP send must not hold them back
	for _, a := range p.alerts {
		c.publish(ctx, log, orders.TopicInventoryStock, a.ProductID, orders.EventLowStock,
			orders.LowStockPayload{
				ProductID:   a.ProductID,
				ProductName: label(a.ProductID),
				Remaining:   a.Available,
				MinStock:    a.MinStock,
				OrderID:     p.order.ID,
				AsOf:        a.AsOf,
			})
	}
	for _, a := range p.alerts {
		st := c.Notifier.SendLowStockAlert(ctx, label(a.ProductID), a.Available)
		log.Info("low stock alert", zap.Int64("product_id", a.ProductID),
			zap.Int("remaining", a.Available), zap.String("status", string(st)))
	}

	var att *notify.Attachment
	if doc, err := c.renderInvoice(ctx, p, name); err != nil {
		span.RecordError(err)
		log.Error("invoice render failed, confirming without attachment", zap.Error(err))
	} else {
		att = &notify.Attachment{Filename: doc.Filename, ContentType: doc.ContentType, Data: doc.Data}
	}

	st := c.Notifier.SendConfirmation(ctx, p.contact, p.order.ID, att)
	if st != notify.StatusDelivered {
		log.Warn("confirmation not delivered", zap.String("status", string(st)))
	}

	lines := make([]orders.LinePayload, 0, len(p.lines))
	for _, l := range p.lines {
		lines = append(lines, orders.LinePayload{ProductID: l.ProductID, Quantity: l.Quantity, Subtotal: l.Subtotal})
	}
	c.publish(ctx, log, orders.TopicOrderPlaced, p.order.ID, orders.EventOrderPlaced, orders.OrderPlacedPayload{
		OrderID:    p.order.ID,
		CustomerID: p.order.CustomerID,
		SellerID:   p.order.SellerID,
		Lines:      lines,
		Total:      p.order.Total,
		CreatedAt:  p.order.CreatedAt,
	})
}

func (c *Coordinator) renderInvoice(ctx context.Context, p placed, name func(int64) (string, bool)) (invoice.Document, error) {
	if c.Invoices == nil {
		return invoice.Document{}, errors.New("no invoice renderer configured")
	}
	inv := invoice.Invoice{
		OrderID:  p.order.ID,
		IssuedAt: p.order.CreatedAt,
		Total:    p.order.Total,
	}
	if cust, ok := c.Catalog.Customer(ctx, p.order.CustomerID); ok {
		inv.Customer = &cust
	}
	for _, l := range p.lines {
		desc, ok := name(l.ProductID)
		if !ok {
			desc = fmt.Sprintf("Product ID %d", l.ProductID)
		}
		inv.Lines = append(inv.Lines, invoice.NewLine(l.Quantity, desc, l.Subtotal))
	}
	return c.Invoices.Render(inv)
}

// publish is best-effort: a missing or failing bus is logged and ignored.
func (c *Coordinator) publish(ctx context.Context, log *zap.Logger, topic string, id int64, eventType string, payload any) {
	if c.Events == nil {
		return
	}
	ref := strconv.FormatInt(id, 10)
	env, err := orders.NewEnvelope(eventType, c.Service, ref, payload)
	if err != nil {
		log.Error("build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		env.TraceID = sc.TraceID().String()
	}
	if err := c.Events.Publish(ctx, topic, orders.PartitionKey(id), env); err != nil {
		log.Warn("publish event failed", zap.String("topic", topic), zap.String("event_type", eventType), zap.Error(err))
	}
}

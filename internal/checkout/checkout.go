// Package checkout places orders: header, lines and stock decrements are
// written in one unit of work, and invoice, email and events follow after
// the commit without being able to undo it.
package checkout

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/invoice"
	"github.com/ariefcatur/go-checkout/internal/notify"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/worker"
)

var (
	ErrValidation        = errors.New("invalid order request")
	ErrTransactionFailed = errors.New("order transaction failed")
)

var tracer = otel.Tracer("github.com/ariefcatur/go-checkout/internal/checkout")

// Store opens units of work over orders and inventory.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error
}

// Catalog resolves display data. Lookups are best-effort: ok=false means unknown.
type Catalog interface {
	ProductName(ctx context.Context, productID int64) (string, bool)
	Customer(ctx context.Context, customerID int64) (orders.Customer, bool)
}

type InventoryWriter interface {
	UpsertInventory(ctx context.Context, rec orders.InventoryRecord) (orders.InventoryRecord, error)
}

type InvoiceRenderer interface {
	Render(inv invoice.Invoice) (invoice.Document, error)
}

type Notifier interface {
	SendConfirmation(ctx context.Context, to string, orderID int64, att *notify.Attachment) notify.Status
	SendLowStockAlert(ctx context.Context, product string, remaining int) notify.Status
	SendStatusChange(ctx context.Context, to string, orderID int64, status orders.Status) notify.Status
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, env orders.Envelope) error
}

type Coordinator struct {
	Store     Store
	Catalog   Catalog
	Inventory InventoryWriter
	Invoices  InvoiceRenderer
	Notifier  Notifier
	Events    Publisher // nil disables domain events
	Runner    worker.Runner
	Log       *zap.Logger
	SellerID  int64
	Service   string
	Now       func() time.Time
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) sellerID() int64 {
	if c.SellerID > 0 {
		return c.SellerID
	}
	return 1
}

func (c *Coordinator) runner() worker.Runner {
	if c.Runner != nil {
		return c.Runner
	}
	return worker.Inline{}
}

package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-checkout/internal/invoice"
	"github.com/ariefcatur/go-checkout/internal/notify"
	"github.com/ariefcatur/go-checkout/internal/orders"
)

type alert struct {
	Product   string
	Remaining int
}

type confirmation struct {
	To         string
	OrderID    int64
	Attachment *notify.Attachment
	CtxErr     error
}

type fakeNotifier struct {
	mu            sync.Mutex
	status        notify.Status
	alerts        []alert
	confirmations []confirmation
	statusEmails  []orders.Status
	alertDelay    time.Duration // simulates a slow SMTP server
}

func (n *fakeNotifier) result() notify.Status {
	if n.status == "" {
		return notify.StatusDelivered
	}
	return n.status
}

func (n *fakeNotifier) SendConfirmation(ctx context.Context, to string, orderID int64, att *notify.Attachment) notify.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, confirmation{To: to, OrderID: orderID, Attachment: att, CtxErr: ctx.Err()})
	return n.result()
}

func (n *fakeNotifier) SendLowStockAlert(_ context.Context, product string, remaining int) notify.Status {
	time.Sleep(n.alertDelay)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert{Product: product, Remaining: remaining})
	return n.result()
}

func (n *fakeNotifier) SendStatusChange(_ context.Context, _ string, _ int64, s orders.Status) notify.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusEmails = append(n.statusEmails, s)
	return n.result()
}

type fakeRenderer struct {
	mu       sync.Mutex
	err      error
	invoices []invoice.Invoice
}

func (r *fakeRenderer) Render(inv invoice.Invoice) (invoice.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices = append(r.invoices, inv)
	if r.err != nil {
		return invoice.Document{}, r.err
	}
	return invoice.Document{
		Filename:    invoice.Filename(inv.OrderID),
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.3 fake"),
		Pages:       1,
	}, nil
}

type published struct {
	Topic string
	Key   string
	Env   orders.Envelope
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key []byte, env orders.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Key: string(key), Env: env})
	return p.err
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Env.EventType)
	}
	return out
}

// faultyStore injects a persistence fault into InsertLine.
type faultyStore struct{ Store }

func (s faultyStore) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return fn(ctx, faultyTx{tx})
	})
}

type faultyTx struct{ orders.Tx }

func (faultyTx) InsertLine(context.Context, *orders.OrderLine) error {
	return errors.New("connection reset by peer")
}

// deferredRunner holds jobs until run is called.
type deferredRunner struct {
	jobs []func()
}

func (r *deferredRunner) Go(ctx context.Context, fn func(ctx context.Context)) {
	r.jobs = append(r.jobs, func() { fn(ctx) })
}

func (r *deferredRunner) run() {
	for _, j := range r.jobs {
		j()
	}
	r.jobs = nil
}

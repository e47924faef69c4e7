package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

// Outbox is the fallback store for messages that could not be delivered.
type Outbox interface {
	Put(ctx context.Context, kind string, m Message, cause error) (string, error)
	Pending(ctx context.Context, limit int) ([]SpoolEntry, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error, dead bool) error
}

type Config struct {
	ShopName     string
	SupportEmail string
	AlertTo      string        // recipient of low-stock alerts
	Attempts     int           // send attempts before spooling
	Backoff      time.Duration // base delay, grows quadratically
	MaxAttempts  int           // spool attempts before an entry is dead
}

type Dispatcher struct {
	sender Sender
	outbox Outbox
	log    *zap.Logger
	cfg    Config
}

func NewDispatcher(sender Sender, outbox Outbox, log *zap.Logger, cfg Config) *Dispatcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.ShopName == "" {
		cfg.ShopName = "JosniShop"
	}
	return &Dispatcher{sender: sender, outbox: outbox, log: log, cfg: cfg}
}

// SendConfirmation emails the purchase confirmation, with the invoice when att is non-nil.
func (d *Dispatcher) SendConfirmation(ctx context.Context, to string, orderID int64, att *Attachment) Status {
	text := fmt.Sprintf("Your purchase has been confirmed. Order: %d.\n", orderID)
	paras := []string{"Your purchase has been processed successfully."}
	if att != nil {
		text += "Keep the attached invoice as proof of your purchase."
		paras = append(paras, "Your invoice is attached as a PDF. Download it and keep it as proof of purchase.")
	}
	paras = append(paras, "You will receive updates about the status of your order shortly.")

	m := Message{
		To:      to,
		Subject: fmt.Sprintf("Thank you for your purchase at %s!", d.cfg.ShopName),
		Text:    text,
	}
	if att != nil {
		m.Attachments = []Attachment{*att}
	}
	return d.dispatch(ctx, KindConfirmation, m, emailView{
		Title:      "Thank you for your purchase!",
		Intro:      "We have confirmed your purchase.",
		Highlight:  fmt.Sprintf("Order #%d", orderID),
		Paragraphs: paras,
		Footer:     fmt.Sprintf("You can follow your order from your account. Thank you for trusting %s.", d.cfg.ShopName),
	})
}

// SendLowStockAlert notifies the configured operator address that product is running out.
func (d *Dispatcher) SendLowStockAlert(ctx context.Context, product string, remaining int) Status {
	m := Message{
		To:      d.cfg.AlertTo,
		Subject: fmt.Sprintf("Low stock alert at %s", d.cfg.ShopName),
		Text:    fmt.Sprintf("Product: %s\n%d units left.", product, remaining),
	}
	return d.dispatch(ctx, KindLowStock, m, emailView{
		Title:      "Low stock",
		Intro:      "This product is about to run out:",
		Highlight:  product,
		Paragraphs: []string{fmt.Sprintf("Only %d units are currently available.", remaining)},
		Footer:     "Review the inventory from your dashboard.",
	})
}

func (d *Dispatcher) SendStatusChange(ctx context.Context, to string, orderID int64, status orders.Status) Status {
	m := Message{
		To:      to,
		Subject: fmt.Sprintf("Order #%d status update", orderID),
		Text:    fmt.Sprintf("The status of your order #%d changed to: %s.", orderID, status),
	}
	return d.dispatch(ctx, KindStatusChange, m, emailView{
		Title:      "Order status changed",
		Intro:      "Your order changed status:",
		Highlight:  fmt.Sprintf("#%d", orderID),
		Paragraphs: []string{fmt.Sprintf("New status: %s", status)},
		Footer:     "See more details from your account.",
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, kind string, m Message, view emailView) Status {
	log := d.log.With(zap.String("kind", kind), zap.String("to", m.To))

	view.Shop = d.cfg.ShopName
	view.Support = d.cfg.SupportEmail
	if html, err := renderHTML(view); err != nil {
		log.Warn("render html body, sending text only", zap.Error(err))
	} else {
		m.HTML = html
	}

	if m.To == "" {
		// nothing to redeliver to
		log.Error("email dropped: no recipient")
		return StatusFailed
	}

	err := d.deliver(ctx, m)
	if err == nil {
		log.Info("email delivered")
		return StatusDelivered
	}

	// spool even when the caller's context is gone
	id, serr := d.outbox.Put(context.WithoutCancel(ctx), kind, m, err)
	if serr != nil {
		log.Error("email lost: delivery and spool failed", zap.Error(err), zap.NamedError("spool_error", serr))
		return StatusFailed
	}
	log.Warn("email spooled for redelivery", zap.String("spool_id", id), zap.Error(err))
	return StatusSpooled
}

func (d *Dispatcher) deliver(ctx context.Context, m Message) error {
	var err error
	for i := 0; i < d.cfg.Attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(d.cfg.Backoff * time.Duration(i*i)):
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			}
		}
		if err = d.sender.Send(ctx, m); err == nil {
			return nil
		}
	}
	return err
}

type RedeliverStats struct {
	Delivered int
	Retrying  int
	Dead      int
}

// Redeliver makes one delivery attempt for up to limit spooled messages.
func (d *Dispatcher) Redeliver(ctx context.Context, limit int) (RedeliverStats, error) {
	var stats RedeliverStats
	entries, err := d.outbox.Pending(ctx, limit)
	if err != nil {
		return stats, err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		log := d.log.With(zap.String("spool_id", e.ID), zap.String("kind", e.Kind))

		sendErr := d.sender.Send(ctx, e.Message)
		if sendErr == nil {
			if err := d.outbox.MarkDelivered(ctx, e.ID); err != nil {
				log.Error("mark delivered", zap.Error(err))
			}
			stats.Delivered++
			continue
		}

		dead := e.Attempts+1 >= d.cfg.MaxAttempts
		if err := d.outbox.MarkFailed(ctx, e.ID, sendErr, dead); err != nil {
			log.Error("mark failed", zap.Error(err))
		}
		if dead {
			stats.Dead++
			log.Error("giving up on spooled email", zap.Int("attempts", e.Attempts+1), zap.Error(sendErr))
		} else {
			stats.Retrying++
			log.Warn("redelivery failed", zap.Int("attempts", e.Attempts+1), zap.Error(sendErr))
		}
	}
	return stats, nil
}

// Drain runs Redeliver batch by batch. It stops after a short batch or after any
// batch that left entries pending, so each entry is tried at most once per call.
func (d *Dispatcher) Drain(ctx context.Context, batch int) (RedeliverStats, error) {
	var total RedeliverStats
	for {
		st, err := d.Redeliver(ctx, batch)
		total.Delivered += st.Delivered
		total.Retrying += st.Retrying
		total.Dead += st.Dead
		if err != nil {
			return total, err
		}
		if st.Retrying > 0 || st.Delivered+st.Dead < batch {
			return total, nil
		}
	}
}

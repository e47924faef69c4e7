package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

type fakeSender struct {
	mu     sync.Mutex
	fails  int    // number of upcoming sends that fail
	failTo string // recipient that always fails
	sent   []Message
	calls  int
	tries  map[string]int
}

func (f *fakeSender) Send(_ context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.tries == nil {
		f.tries = map[string]int{}
	}
	f.tries[m.To]++
	if m.To == f.failTo {
		return errors.New("smtp: mailbox unavailable")
	}
	if f.fails > 0 {
		f.fails--
		return errors.New("smtp: connection refused")
	}
	f.sent = append(f.sent, m)
	return nil
}

type brokenOutbox struct{ Outbox }

func (brokenOutbox) Put(context.Context, string, Message, error) (string, error) {
	return "", errors.New("disk full")
}

func newSpool(t *testing.T) *Spool {
	t.Helper()
	s, err := OpenSpool(filepath.Join(t.TempDir(), "spool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newDispatcher(t *testing.T, s Sender, o Outbox) *Dispatcher {
	return NewDispatcher(s, o, zaptest.NewLogger(t), Config{
		ShopName:     "JosniShop",
		SupportEmail: "support@josnishop.com",
		AlertTo:      "inventory@josnishop.com",
		Attempts:     2,
		Backoff:      1,
		MaxAttempts:  3,
	})
}

func TestSendConfirmation_DeliveredWithAttachment(t *testing.T) {
	sender := &fakeSender{}
	d := newDispatcher(t, sender, newSpool(t))

	att := &Attachment{Filename: "invoice_order_7.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}
	st := d.SendConfirmation(context.Background(), "ana@example.com", 7, att)

	assert.Equal(t, StatusDelivered, st)
	require.Len(t, sender.sent, 1)
	m := sender.sent[0]
	assert.Equal(t, "ana@example.com", m.To)
	assert.Contains(t, m.Text, "Order: 7")
	assert.Contains(t, m.HTML, "Order #7")
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "invoice_order_7.pdf", m.Attachments[0].Filename)
}

func TestSendConfirmation_RetriesBeforeSpooling(t *testing.T) {
	sender := &fakeSender{fails: 1}
	d := newDispatcher(t, sender, newSpool(t))

	st := d.SendConfirmation(context.Background(), "ana@example.com", 8, nil)
	assert.Equal(t, StatusDelivered, st)
	assert.Equal(t, 2, sender.calls)
	assert.Empty(t, sender.sent[0].Attachments)
}

func TestSendLowStockAlert_SpooledOnFailure(t *testing.T) {
	sender := &fakeSender{fails: 5}
	spool := newSpool(t)
	d := newDispatcher(t, sender, spool)

	st := d.SendLowStockAlert(context.Background(), "Laptop <Pro>", 1)
	assert.Equal(t, StatusSpooled, st)

	pending, err := spool.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, KindLowStock, pending[0].Kind)
	assert.Equal(t, "inventory@josnishop.com", pending[0].Message.To)
	assert.Contains(t, pending[0].Message.Text, "1 units left")
	assert.Contains(t, pending[0].Message.HTML, "Laptop &lt;Pro&gt;")
	assert.Contains(t, pending[0].LastError, "connection refused")
}

func TestDispatch_FailedWhenSpoolUnavailable(t *testing.T) {
	d := newDispatcher(t, &fakeSender{fails: 5}, brokenOutbox{})
	st := d.SendStatusChange(context.Background(), "ana@example.com", 3, orders.StatusShipped)
	assert.Equal(t, StatusFailed, st)
}

func TestRedeliver(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{fails: 2}
	spool := newSpool(t)
	d := newDispatcher(t, sender, spool)

	att := &Attachment{Filename: "invoice_order_9.pdf", ContentType: "application/pdf", Data: []byte{0x25, 0x50, 0x44, 0x46}}
	require.Equal(t, StatusSpooled, d.SendConfirmation(ctx, "ana@example.com", 9, att))

	stats, err := d.Redeliver(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, RedeliverStats{Delivered: 1}, stats)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, att.Data, sender.sent[0].Attachments[0].Data)

	counts, err := spool.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["delivered"])
}

func TestRedeliver_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{fails: 100}
	spool := newSpool(t)
	d := newDispatcher(t, sender, spool)

	require.Equal(t, StatusSpooled, d.SendLowStockAlert(ctx, "Mouse", 0))

	stats, err := d.Redeliver(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retrying)

	stats, err = d.Redeliver(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dead)

	pending, err := spool.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSendLowStockAlert_NoRecipientIsNotSpooled(t *testing.T) {
	sender := &fakeSender{}
	spool := newSpool(t)
	d := NewDispatcher(sender, spool, zaptest.NewLogger(t), Config{Attempts: 2, Backoff: 1})

	st := d.SendLowStockAlert(context.Background(), "Mouse", 1)

	assert.Equal(t, StatusFailed, st)
	assert.Zero(t, sender.calls)
	pending, err := spool.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// stepClock returns the given instants in order, then repeats the last one.
func stepClock(ts ...time.Time) func() time.Time {
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := ts[0]
		if len(ts) > 1 {
			ts = ts[1:]
		}
		return t
	}
}

func TestSpool_PendingOldestFirstWithinSameSecond(t *testing.T) {
	ctx := context.Background()
	spool := newSpool(t)
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	spool.now = stepClock(base, base.Add(300*time.Millisecond))

	_, err := spool.Put(ctx, KindConfirmation, Message{To: "old@example.com"}, nil)
	require.NoError(t, err)
	_, err = spool.Put(ctx, KindConfirmation, Message{To: "new@example.com"}, nil)
	require.NoError(t, err)

	pending, err := spool.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "old@example.com", pending[0].Message.To)
	assert.Equal(t, "new@example.com", pending[1].Message.To)
	assert.True(t, pending[0].CreatedAt.Equal(base))
}

func TestDrain_TriesEachEntryOncePerCall(t *testing.T) {
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		order  []string
		want   RedeliverStats
		undone int
	}{
		{"failing entry first", []string{"bad@example.com", "a@example.com", "b@example.com"}, RedeliverStats{Delivered: 1, Retrying: 1}, 2},
		{"failing entry last", []string{"a@example.com", "b@example.com", "bad@example.com"}, RedeliverStats{Delivered: 2, Retrying: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			sender := &fakeSender{failTo: "bad@example.com"}
			spool := newSpool(t)
			spool.now = stepClock(base, base.Add(time.Second), base.Add(2*time.Second))
			for _, to := range tt.order {
				_, err := spool.Put(ctx, KindConfirmation, Message{To: to}, errors.New("timeout"))
				require.NoError(t, err)
			}
			d := NewDispatcher(sender, spool, zaptest.NewLogger(t), Config{MaxAttempts: 10})

			stats, err := d.Drain(ctx, 2)

			require.NoError(t, err)
			assert.Equal(t, tt.want, stats)
			assert.Equal(t, 1, sender.tries["bad@example.com"])
			pending, err := spool.Pending(ctx, 10)
			require.NoError(t, err)
			assert.Len(t, pending, tt.undone)
		})
	}
}

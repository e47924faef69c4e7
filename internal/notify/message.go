// Package notify delivers customer and operator email. Delivery never fails
// the caller: a message that cannot be sent is kept in a local spool and
// retried later by Redeliver.
package notify

import "context"

type Status string

const (
	StatusDelivered Status = "DELIVERED"
	StatusSpooled   Status = "SPOOLED"
	StatusFailed    Status = "FAILED"
)

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type Message struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Sender hands one message to a mail transport.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

const (
	KindConfirmation = "order_confirmation"
	KindLowStock     = "low_stock_alert"
	KindStatusChange = "order_status"
)

package checkout

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

type LineRequest struct {
	ProductID int64           `json:"productRef"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Request struct {
	CustomerID   int64           `json:"customerRef"`
	Lines        []LineRequest   `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	ContactEmail string          `json:"contactAddress"`
}

// Validate rejects malformed requests before anything is persisted.
// The declared total is taken as given and not reconciled with the line subtotals.
func (r Request) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("%w: customerRef must be positive", ErrValidation)
	}
	if len(r.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrValidation)
	}
	for i, l := range r.Lines {
		switch {
		case l.ProductID <= 0:
			return fmt.Errorf("%w: lines[%d].productRef must be positive", ErrValidation, i)
		case l.Quantity <= 0:
			return fmt.Errorf("%w: lines[%d].quantity must be positive", ErrValidation, i)
		case l.Subtotal.IsNegative():
			return fmt.Errorf("%w: lines[%d].subtotal must not be negative", ErrValidation, i)
		}
	}
	if r.Total.IsNegative() {
		return fmt.Errorf("%w: total must not be negative", ErrValidation)
	}
	if _, err := mail.ParseAddress(r.ContactEmail); err != nil {
		return fmt.Errorf("%w: contactAddress: %v", ErrValidation, err)
	}
	return nil
}

type Confirmation struct {
	OrderID   int64
	Status    orders.Status
	CreatedAt time.Time
}

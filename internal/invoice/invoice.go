// Package invoice renders order invoices as paginated A4 PDF documents.
package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

type Line struct {
	Quantity    int
	Description string
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// NewLine derives the unit price from the line subtotal.
func NewLine(qty int, description string, subtotal decimal.Decimal) Line {
	unit := subtotal
	if qty > 0 {
		unit = subtotal.Div(decimal.NewFromInt(int64(qty)))
	}
	return Line{Quantity: qty, Description: description, UnitPrice: unit, Subtotal: subtotal}
}

type Invoice struct {
	OrderID  int64
	IssuedAt time.Time
	Customer *orders.Customer // nil renders placeholders
	Lines    []Line
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal is the sum of the line subtotals.
func (inv Invoice) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range inv.Lines {
		sum = sum.Add(l.Subtotal)
	}
	return sum
}

// Code is the fiscal reference printed under the QR code.
func (inv Invoice) Code() string {
	ref := fmt.Sprintf("%d-%s-%s-%s", inv.OrderID,
		inv.Total.Truncate(0).String(), inv.Subtotal().Truncate(0).String(), inv.IssuedAt.Format(dateLayout))
	return strings.ReplaceAll(ref, " ", "_")
}

func (inv Invoice) qrPayload() string {
	return fmt.Sprintf("CUFE:%s|Total:%s|Fecha:%s", inv.Code(), money(inv.Total), inv.IssuedAt.Format(dateLayout))
}

func Filename(orderID int64) string { return fmt.Sprintf("invoice_order_%d.pdf", orderID) }

type Document struct {
	Filename    string
	ContentType string
	Data        []byte
	Pages       int
}

const dateLayout = "2006-01-02 15:04"

// money formats d with two decimals and comma thousands separators.
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

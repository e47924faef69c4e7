package invoice

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

func sampleInvoice(lines int) Invoice {
	inv := Invoice{
		OrderID:  42,
		IssuedAt: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
		Customer: &orders.Customer{ID: 5, Name: "Ana Pérez", Email: "ana@example.com"},
		Tax:      decimal.Zero,
	}
	total := decimal.Zero
	for i := 0; i < lines; i++ {
		sub := decimal.NewFromInt(int64(1000 * (i + 1)))
		inv.Lines = append(inv.Lines, NewLine(2, fmt.Sprintf("Product %d with a fairly long description that needs wrapping inside its column", i), sub))
		total = total.Add(sub)
	}
	inv.Total = total
	return inv
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 16, G: 185, B: 129, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRender_SinglePage(t *testing.T) {
	r := &Renderer{ShopName: "JosniShop", SupportEmail: "support@josnishop.com"}
	doc, err := r.Render(sampleInvoice(2))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	assert.Equal(t, "invoice_order_42.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, 1, doc.Pages)
}

func TestRender_PaginatesLongTables(t *testing.T) {
	r := &Renderer{}
	doc, err := r.Render(sampleInvoice(60))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, doc.Pages, 3)
}

func TestRender_WithoutCustomer(t *testing.T) {
	inv := sampleInvoice(1)
	inv.Customer = nil
	doc, err := (&Renderer{}).Render(inv)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Data)
}

func TestRender_Logo(t *testing.T) {
	tests := []struct {
		name string
		logo []byte
	}{
		{"valid png", tinyPNG(t)},
		{"garbage", []byte("not an image")},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := (&Renderer{Logo: tt.logo}).Render(sampleInvoice(1))
			require.NoError(t, err)
			assert.Equal(t, 1, doc.Pages)
		})
	}
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	inv := sampleInvoice(3)
	before := fmt.Sprintf("%+v", inv)
	_, err := (&Renderer{}).Render(inv)
	require.NoError(t, err)
	assert.Equal(t, before, fmt.Sprintf("%+v", inv))
}

func TestRender_EmptyDescriptionAndLongWord(t *testing.T) {
	inv := sampleInvoice(0)
	inv.Lines = []Line{
		NewLine(1, "", decimal.NewFromInt(5)),
		NewLine(1, "Supercalifragilisticexpialidocious-Supercalifragilisticexpialidocious-Supercalifragilisticexpialidocious", decimal.NewFromInt(5)),
	}
	inv.Total = decimal.NewFromInt(10)
	_, err := (&Renderer{}).Render(inv)
	require.NoError(t, err)
}

func TestNewLine(t *testing.T) {
	l := NewLine(4, "Cable", decimal.RequireFromString("10.00"))
	assert.True(t, l.UnitPrice.Equal(decimal.RequireFromString("2.5")))

	z := NewLine(0, "Gift", decimal.NewFromInt(3))
	assert.True(t, z.UnitPrice.Equal(decimal.NewFromInt(3)))
}

func TestInvoiceCode(t *testing.T) {
	inv := sampleInvoice(2)
	assert.Equal(t, "42-3000-3000-2025-03-14_10:30", inv.Code())
	assert.Equal(t, "CUFE:42-3000-3000-2025-03-14_10:30|Total:3,000.00|Fecha:2025-03-14 10:30", inv.qrPayload())
}

func TestMoney(t *testing.T) {
	tests := map[string]string{
		"0":        "0.00",
		"12.5":     "12.50",
		"1234.567": "1,234.57",
		"1000000":  "1,000,000.00",
		"-98765.4": "-98,765.40",
		"999":      "999.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, money(decimal.RequireFromString(in)), in)
	}
}

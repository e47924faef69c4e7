package invoice

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
)

// page geometry in mm (A4)
const (
	pageW       = 210.0
	pageH       = 297.0
	margin      = 18.0
	footerSpace = 80.0
	rowMin      = 10.0
	lineH       = 4.5
	totalsW     = 70.0
	totalsH     = 28.0
)

var colWidths = [4]float64{18, 100, 30, 30}
var colTitles = [4]string{"Qty", "Description", "Unit price", "Subtotal"}

type Renderer struct {
	ShopName     string
	SupportEmail string
	Logo         []byte // PNG or JPEG; ignored when empty or undecodable
}

// Render builds the PDF for inv. inv is not modified.
func (r *Renderer) Render(inv Invoice) (Document, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(inv.IssuedAt)
	pdf.SetTitle(fmt.Sprintf("Invoice %d", inv.OrderID), true)
	pdf.SetAuthor(r.shop(), true)

	p := &painter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	logo := r.registerLogo(pdf)

	p.newPage()
	y := p.header(logo)
	y = p.metadata(y, inv)
	y = p.table(y, inv.Lines)

	if y+10+totalsH > pageH-margin-footerSpace {
		p.newPage()
		y = margin + 60
	} else {
		y += 10
	}
	p.totals(y, inv)
	p.footer(r.shop(), r.SupportEmail)
	if err := p.qr(inv); err != nil {
		return Document{}, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Document{}, fmt.Errorf("render invoice %d: %w", inv.OrderID, err)
	}
	return Document{
		Filename:    Filename(inv.OrderID),
		ContentType: "application/pdf",
		Data:        buf.Bytes(),
		Pages:       pdf.PageNo(),
	}, nil
}

func (r *Renderer) shop() string {
	if r.ShopName == "" {
		return "JosniShop"
	}
	return r.ShopName
}

// registerLogo returns the image name, or "" when the logo cannot be used.
func (r *Renderer) registerLogo(pdf *fpdf.Fpdf) string {
	if len(r.Logo) == 0 {
		return ""
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(r.Logo))
	if err != nil {
		return ""
	}
	typ := map[string]string{"png": "PNG", "jpeg": "JPG"}[format]
	if typ == "" {
		return ""
	}
	pdf.RegisterImageOptionsReader("logo", fpdf.ImageOptions{ImageType: typ}, bytes.NewReader(r.Logo))
	if pdf.Err() {
		pdf.ClearError()
		return ""
	}
	return "logo"
}

type painter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (p *painter) newPage() {
	p.pdf.AddPage()
	p.pdf.SetLineWidth(0.5)
	p.pdf.SetDrawColor(0, 0, 0)
	p.pdf.Rect(margin/2, margin/2, pageW-margin, pageH-margin, "D")
}

func (p *painter) header(logo string) float64 {
	y := margin
	titleY := y + 20
	if logo != "" {
		p.pdf.ImageOptions(logo, margin+5, y, 40, 40, false, fpdf.ImageOptions{}, 0, "")
		y += 40
	} else {
		y += 35
	}
	p.pdf.SetFont("Helvetica", "B", 24)
	p.pdf.SetTextColor(0, 0, 0)
	p.pdf.SetXY(margin, titleY-6)
	p.pdf.CellFormat(pageW-2*margin, 12, p.tr("ELECTRONIC INVOICE"), "", 0, "C", false, 0, "")
	return y + 12
}

func (p *painter) metadata(y float64, inv Invoice) float64 {
	name, email := "Customer", "customer@example.com"
	if c := inv.Customer; c != nil {
		if c.Name != "" {
			name = c.Name
		}
		if c.Email != "" {
			email = c.Email
		}
	}
	p.pair(margin, y, "Number:", fmt.Sprint(inv.OrderID))
	p.pair(pageW-margin-70, y, "Date:", inv.IssuedAt.Format(dateLayout))
	y += 6
	p.pair(margin, y, "Customer:", name)
	p.pair(pageW-margin-70, y, "Email:", email)
	return y + 12
}

func (p *painter) pair(x, y float64, label, value string) {
	p.pdf.SetFont("Helvetica", "B", 10)
	p.pdf.Text(x, y, p.tr(label))
	p.pdf.SetFont("Helvetica", "", 10)
	off := 36.0
	if x > margin {
		off = 20
	}
	p.pdf.Text(x+off, y, p.tr(value))
}

func (p *painter) tableHeader(y float64) float64 {
	p.pdf.SetFillColor(16, 185, 129)
	p.pdf.SetTextColor(255, 255, 255)
	p.pdf.SetFont("Helvetica", "B", 9)
	x := margin
	for i, w := range colWidths {
		p.pdf.SetXY(x, y)
		p.pdf.CellFormat(w, rowMin, p.tr(colTitles[i]), "", 0, "C", true, 0, "")
		x += w
	}
	p.pdf.SetTextColor(0, 0, 0)
	return y + rowMin
}

// table draws the item rows, opening a new page (with the header row) when a row would
// cross into the footer area. It returns the y position below the last row.
func (p *painter) table(y float64, lines []Line) float64 {
	limit := pageH - margin - footerSpace
	y = p.tableHeader(y)
	total := colWidths[0] + colWidths[1] + colWidths[2] + colWidths[3]

	p.pdf.SetFont("Helvetica", "", 9)
	for i, l := range lines {
		desc := p.wrap(p.tr(l.Description), colWidths[1]-4)
		h := max(rowMin, float64(len(desc))*lineH+4)
		if y+h > limit {
			p.newPage()
			y = p.tableHeader(margin)
			p.pdf.SetFont("Helvetica", "", 9)
		}

		if i%2 == 0 {
			p.pdf.SetFillColor(247, 250, 247)
		} else {
			p.pdf.SetFillColor(255, 255, 255)
		}
		p.pdf.Rect(margin, y, total, h, "F")

		mid := y + h/2 + 1.5
		p.pdf.Text(margin+4, mid, fmt.Sprint(l.Quantity))
		for j, s := range desc {
			p.pdf.Text(margin+colWidths[0]+2, y+2+lineH*float64(j+1)-1, s)
		}
		x := margin + colWidths[0] + colWidths[1]
		p.rightText(x+colWidths[2]-4, mid, money(l.UnitPrice))
		x += colWidths[2]
		p.rightText(x+colWidths[3]-4, mid, money(l.Subtotal))
		y += h
	}
	return y
}

// wrap breaks an already translated string into lines no wider than w.
// Words longer than w are cut.
func (p *painter) wrap(s string, w float64) []string {
	var lines []string
	cur := ""
	for _, word := range strings.Fields(s) {
		for len(word) > 1 && p.pdf.GetStringWidth(word) > w {
			n := len(word) - 1
			for n > 1 && p.pdf.GetStringWidth(word[:n]) > w {
				n--
			}
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			lines = append(lines, word[:n])
			word = word[n:]
		}
		switch {
		case cur == "":
			cur = word
		case p.pdf.GetStringWidth(cur+" "+word) <= w:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, cur)
	}
	return lines
}

func (p *painter) rightText(right, y float64, s string) {
	p.pdf.Text(right-p.pdf.GetStringWidth(s), y, s)
}

func (p *painter) totals(y float64, inv Invoice) {
	x := pageW - margin - totalsW
	p.pdf.SetFillColor(243, 244, 246)
	p.pdf.Rect(x, y, totalsW, totalsH, "F")

	right := x + totalsW - 8
	p.pdf.SetFont("Helvetica", "", 10)
	p.rightText(right, y+8, "Subtotal: "+money(inv.Subtotal()))
	p.rightText(right, y+16, "Tax: "+money(inv.Tax))

	p.pdf.SetDrawColor(229, 231, 235)
	p.pdf.SetLineWidth(0.5)
	p.pdf.Line(x+6, y+totalsH-8, x+totalsW-6, y+totalsH-8)

	p.pdf.SetFont("Helvetica", "B", 12)
	p.rightText(right, y+totalsH-3, "Total: "+money(inv.Total))
}

func (p *painter) footer(shop, support string) {
	top := pageH - margin - footerSpace
	p.pdf.SetFont("Helvetica", "B", 13)
	p.pdf.SetTextColor(211, 47, 47)
	p.centered(top+48, fmt.Sprintf("Thank you for shopping at %s!", shop))

	p.pdf.SetFont("Helvetica", "", 10)
	p.pdf.SetTextColor(0, 0, 0)
	p.centered(top+54, "Your purchase inspires us to improve every day.")
	if support != "" {
		p.centered(top+59, "Questions or need help? Contact us at "+support)
	}
	p.pdf.SetFont("Helvetica", "", 8)
	p.pdf.Text(margin, top+70, p.tr("Electronic invoice issued by "+shop))
}

func (p *painter) centered(y float64, s string) {
	s = p.tr(s)
	p.pdf.Text((pageW-p.pdf.GetStringWidth(s))/2, y, s)
}

func (p *painter) qr(inv Invoice) error {
	png, err := qrcode.Encode(inv.qrPayload(), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("invoice %d qr: %w", inv.OrderID, err)
	}
	p.pdf.RegisterImageOptionsReader("qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))

	const size = 30.0
	top := pageH - margin - footerSpace + 2
	p.pdf.ImageOptions("qr", (pageW-size)/2, top, size, size, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	p.pdf.SetFont("Helvetica", "B", 9)
	p.centered(top+size+4, "CUFE:")
	code := inv.Code()
	if len(code) > 80 {
		code = code[:80] + "..."
	}
	p.pdf.SetFont("Helvetica", "", 8)
	p.centered(top+size+9, code)
	return nil
}

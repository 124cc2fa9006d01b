// Package receipt renders an order plus shop snapshot into a printable
// receipt. Formatting is pure; delivery is the print dispatcher's job.
package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/session"
)

// defaultWidth fits a 58mm thermal roll.
const defaultWidth = 32

var viPrinter = message.NewPrinter(language.Vietnamese)

// FormatVND renders an amount with Vietnamese digit grouping and the đ
// suffix. Amounts are whole dong; fractions are rounded away.
func FormatVND(v decimal.Decimal) string {
	return viPrinter.Sprintf("%v", number.Decimal(v.Round(0).IntPart())) + "đ"
}

func formatTime(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

// Job is everything one receipt needs. It is consumed once and not
// persisted.
type Job struct {
	Shop         session.ShopInfo
	Order        *order.Order
	Cashier      string
	CustomerName string
	Received     decimal.Decimal
	Change       decimal.Decimal
	PrintedAt    time.Time
}

// Formatter renders receipts at a fixed character width.
type Formatter struct {
	width int
}

// NewFormatter creates a Formatter. Non-positive widths fall back to the
// 58mm default.
func NewFormatter(width int) *Formatter {
	if width <= 0 {
		width = defaultWidth
	}
	return &Formatter{width: width}
}

// Text renders the plain-text receipt for thermal printers.
func (f *Formatter) Text(j Job) []byte {
	var b strings.Builder

	f.center(&b, strings.ToUpper(j.Shop.Name))
	if j.Shop.Branch != "" {
		f.center(&b, j.Shop.Branch)
	}
	if j.Shop.Address != "" {
		f.center(&b, j.Shop.Address)
	}
	if j.Shop.Phone != "" {
		f.center(&b, "ĐT: "+j.Shop.Phone)
	}
	f.rule(&b)

	f.row(&b, fmt.Sprintf("HĐ: %d", j.Order.ID), formatTime(j.PrintedAt))
	if j.Cashier != "" {
		b.WriteString("Thu ngân: " + j.Cashier + "\n")
	}
	if j.CustomerName != "" {
		b.WriteString("Khách: " + j.CustomerName + "\n")
	}
	f.rule(&b)

	for _, d := range j.Order.Details {
		name := d.ProductName
		if name == "" {
			name = fmt.Sprintf("Sản phẩm #%d", d.ProductID)
		}
		b.WriteString(name + "\n")
		qty := fmt.Sprintf("  %d x %s", d.Quantity, FormatVND(d.UnitPrice))
		f.row(&b, qty, FormatVND(d.LineTotal()))
	}
	f.rule(&b)

	subtotal := j.Order.Subtotal()
	f.row(&b, "Tổng cộng:", FormatVND(subtotal))
	if j.Order.Discount.IsPositive() {
		f.row(&b, "Giảm giá:", "-"+FormatVND(j.Order.Discount))
	}
	total := subtotal.Sub(j.Order.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	f.row(&b, "Thanh toán:", FormatVND(total))
	if j.Received.IsPositive() {
		f.row(&b, "Tiền khách đưa:", FormatVND(j.Received))
		f.row(&b, "Tiền thối:", FormatVND(j.Change))
	}
	f.rule(&b)

	if j.Shop.Wifi != "" {
		f.center(&b, "Wifi: "+j.Shop.Wifi)
	}
	f.center(&b, "Cảm ơn quý khách!")
	b.WriteString("\n")

	return []byte(b.String())
}

// center writes s centered in the receipt width. Overlong lines are kept
// whole rather than truncated.
func (f *Formatter) center(b *strings.Builder, s string) {
	pad := (f.width - utf8.RuneCountInString(s)) / 2
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteString(s)
	b.WriteString("\n")
}

// row writes left and right aligned to the opposite edges of the width.
func (f *Formatter) row(b *strings.Builder, left, right string) {
	gap := f.width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(left)
	b.WriteString(strings.Repeat(" ", gap))
	b.WriteString(right)
	b.WriteString("\n")
}

func (f *Formatter) rule(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", f.width))
	b.WriteString("\n")
}

var htmlTemplate = template.Must(template.New("receipt").Parse(`<!doctype html>
<html lang="vi">
<head>
<meta charset="utf-8">
<title>Hóa đơn #{{.OrderID}}</title>
<style>
body { font-family: "Courier New", monospace; width: 280px; margin: 0 auto; }
h1 { font-size: 14px; text-align: center; text-transform: uppercase; }
p.meta, p.footer { text-align: center; margin: 2px 0; }
table { width: 100%; border-collapse: collapse; font-size: 12px; }
td.amount { text-align: right; }
tr.total td { border-top: 1px dashed #000; font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Shop.Name}}</h1>
{{if .Shop.Branch}}<p class="meta">{{.Shop.Branch}}</p>{{end}}
{{if .Shop.Address}}<p class="meta">{{.Shop.Address}}</p>{{end}}
{{if .Shop.Phone}}<p class="meta">ĐT: {{.Shop.Phone}}</p>{{end}}
<p class="meta">HĐ: {{.OrderID}} · {{.PrintedAt}}</p>
{{if .Cashier}}<p class="meta">Thu ngân: {{.Cashier}}</p>{{end}}
{{if .CustomerName}}<p class="meta">Khách: {{.CustomerName}}</p>{{end}}
<table>
{{range .Lines}}
<tr><td colspan="2">{{.Name}}</td></tr>
<tr><td>{{.Quantity}} x {{.UnitPrice}}</td><td class="amount">{{.LineTotal}}</td></tr>
{{end}}
<tr class="total"><td>Tổng cộng</td><td class="amount">{{.Subtotal}}</td></tr>
{{if .Discount}}<tr><td>Giảm giá</td><td class="amount">-{{.Discount}}</td></tr>{{end}}
<tr class="total"><td>Thanh toán</td><td class="amount">{{.Total}}</td></tr>
{{if .Received}}<tr><td>Tiền khách đưa</td><td class="amount">{{.Received}}</td></tr>
<tr><td>Tiền thối</td><td class="amount">{{.Change}}</td></tr>{{end}}
</table>
{{if .Shop.Wifi}}<p class="footer">Wifi: {{.Shop.Wifi}}</p>{{end}}
<p class="footer">Cảm ơn quý khách!</p>
</body>
</html>
`))

type htmlLine struct {
	Name      string
	Quantity  int
	UnitPrice string
	LineTotal string
}

type htmlData struct {
	Shop         session.ShopInfo
	OrderID      int64
	PrintedAt    string
	Cashier      string
	CustomerName string
	Lines        []htmlLine
	Subtotal     string
	Discount     string
	Total        string
	Received     string
	Change       string
}

// HTML renders the browser preview variant of the receipt.
func (f *Formatter) HTML(j Job) ([]byte, error) {
	data := htmlData{
		Shop:         j.Shop,
		OrderID:      j.Order.ID,
		PrintedAt:    formatTime(j.PrintedAt),
		Cashier:      j.Cashier,
		CustomerName: j.CustomerName,
	}

	for _, d := range j.Order.Details {
		name := d.ProductName
		if name == "" {
			name = fmt.Sprintf("Sản phẩm #%d", d.ProductID)
		}
		data.Lines = append(data.Lines, htmlLine{
			Name:      name,
			Quantity:  d.Quantity,
			UnitPrice: FormatVND(d.UnitPrice),
			LineTotal: FormatVND(d.LineTotal()),
		})
	}

	subtotal := j.Order.Subtotal()
	data.Subtotal = FormatVND(subtotal)
	if j.Order.Discount.IsPositive() {
		data.Discount = FormatVND(j.Order.Discount)
	}
	total := subtotal.Sub(j.Order.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	data.Total = FormatVND(total)
	if j.Received.IsPositive() {
		data.Received = FormatVND(j.Received)
		data.Change = FormatVND(j.Change)
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, "render receipt")
	}
	return buf.Bytes(), nil
}

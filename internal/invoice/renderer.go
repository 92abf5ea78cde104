package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/solstice-labs/commerce-core/internal/domain"
)

// invoiceTemplate renders the invoice document. Line items appear in the
// order they were stored on the order, so rendering the same order with the
// same invoice number always yields identical bytes.
var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.InvoiceNumber}}</title></head>
<body>
<h1>Invoice {{.InvoiceNumber}}</h1>
<p>Order {{.OrderNumber}} &middot; Issued {{.IssuedAt}}</p>
<table>
<thead><tr><th>Item</th><th>SKU</th><th>Qty</th><th>Unit</th><th>Subtotal</th></tr></thead>
<tbody>
{{- range .Lines}}
<tr><td>{{.Name}}</td><td>{{.SKU}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.Subtotal}}</td></tr>
{{- end}}
</tbody>
</table>
<table>
<tr><td>Subtotal</td><td>{{.Subtotal}}</td></tr>
<tr><td>Discount</td><td>-{{.Discount}}</td></tr>
<tr><td>Shipping</td><td>{{.Shipping}}</td></tr>
<tr><td><strong>Total</strong></td><td><strong>{{.Total}} {{.Currency}}</strong></td></tr>
</table>
{{- if .ShipTo}}
<p>Ship to: {{.ShipTo}}</p>
{{- end}}
</body>
</html>
`))

type templateLine struct {
	Name      string
	SKU       string
	Quantity  int
	UnitPrice string
	Subtotal  string
}

type templateData struct {
	InvoiceNumber string
	OrderNumber   string
	IssuedAt      string
	Lines         []templateLine
	Subtotal      string
	Discount      string
	Shipping      string
	Total         string
	Currency      string
	ShipTo        string
}

// Render produces the invoice document for the given order. The output is
// deterministic for a given order, invoice number and issue time.
func Render(order *domain.Order, invoiceNumber string, issuedAt time.Time) ([]byte, error) {
	data := templateData{
		InvoiceNumber: invoiceNumber,
		OrderNumber:   order.OrderNumber,
		IssuedAt:      issuedAt.UTC().Format("2006-01-02"),
		Subtotal:      formatAmount(order.SubtotalAmount),
		Discount:      formatAmount(order.DiscountAmount),
		Shipping:      formatAmount(order.ShippingAmount),
		Total:         formatAmount(order.TotalAmount),
		Currency:      order.Currency,
	}

	for _, item := range order.Items {
		data.Lines = append(data.Lines, templateLine{
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: formatAmount(item.Price),
			Subtotal:  formatAmount(item.Subtotal),
		})
	}

	if order.ShippingAddress != nil {
		a := order.ShippingAddress
		data.ShipTo = fmt.Sprintf("%s, %s, %s %s, %s", a.FullName, a.AddressLine, a.City, a.PostalCode, a.Country)
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering invoice: %w", err)
	}
	return buf.Bytes(), nil
}

// formatAmount renders a minor-unit amount as a decimal string, e.g. 950 -> "9.50".
func formatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/invoices"
	"github.com/fakturo/fakturo/internal/reports"
)

var templateFuncs = template.FuncMap{
	"money": func(v decimal.Decimal) string {
		return v.StringFixed(2)
	},
}

var invoiceTemplate = template.Must(template.New("invoice").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #1a1a1a; margin: 40px; }
h1 { font-size: 20px; margin-bottom: 0; }
.meta { margin: 16px 0; }
.meta td { padding: 2px 12px 2px 0; }
table.lines { width: 100%; border-collapse: collapse; margin-top: 16px; }
table.lines th, table.lines td { border: 1px solid #ccc; padding: 6px 8px; text-align: right; }
table.lines th { background: #f0f0f0; }
table.lines td.desc, table.lines th.desc { text-align: left; }
.totals { margin-top: 16px; float: right; }
.totals td { padding: 3px 12px; text-align: right; }
.totals tr.grand td { font-weight: bold; border-top: 2px solid #1a1a1a; }
</style>
</head>
<body>
<h1>Invoice {{.Invoice.Number}}</h1>
<table class="meta">
<tr><td>Client</td><td>{{.ClientName}}</td></tr>
<tr><td>Issue date</td><td>{{.Invoice.IssueDate.Format "2006-01-02"}}</td></tr>
<tr><td>Due date</td><td>{{.Invoice.DueDate.Format "2006-01-02"}}</td></tr>
<tr><td>Payment</td><td>{{.Invoice.PaymentType}}</td></tr>
<tr><td>Status</td><td>{{.Invoice.Status}}</td></tr>
</table>
<table class="lines">
<tr><th class="desc">Description</th><th>Qty</th><th>Unit Price</th><th>Discount %</th><th>Tax %</th><th>Total Excl.</th><th>Tax</th><th>Total</th></tr>
{{range .Invoice.Lines}}
<tr>
<td class="desc">{{if .Description}}{{.Description}}{{else}}Item {{.ProductID}}{{end}}</td>
<td>{{.Quantity}}</td>
<td>{{money .UnitPrice}}</td>
<td>{{money .DiscountPct}}</td>
<td>{{money .TaxRate}}</td>
<td>{{money .TotalExcl}}</td>
<td>{{money .TaxAmount}}</td>
<td>{{money .Total}}</td>
</tr>
{{end}}
</table>
<table class="totals">
<tr><td>Subtotal</td><td>{{money .Invoice.Subtotal}}</td></tr>
<tr><td>Tax</td><td>{{money .Invoice.TaxTotal}}</td></tr>
<tr><td>Stamp duty</td><td>{{money .Invoice.StampTax}}</td></tr>
<tr class="grand"><td>Total</td><td>{{money .Invoice.Total}}</td></tr>
</table>
{{if .Invoice.Notes}}<p style="clear: both">{{.Invoice.Notes}}</p>{{end}}
</body>
</html>`))

var etat104Template = template.Must(template.New("etat104").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #1a1a1a; margin: 40px; }
h1 { font-size: 18px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #ccc; padding: 6px 8px; text-align: right; }
th { background: #f0f0f0; }
td.name, th.name { text-align: left; }
tr.totals td { font-weight: bold; background: #fafafa; }
.tva { margin-top: 16px; }
.tva td { padding: 3px 12px 3px 0; border: none; text-align: left; }
</style>
</head>
<body>
<h1>Etat 104 &mdash; {{printf "%04d-%02d" .Year .Month}}</h1>
<table>
<tr><th>Client ID</th><th class="name">Client</th><th>Invoices</th><th>Subtotal</th><th>Tax Total</th><th>Total</th></tr>
{{range .Rows}}
<tr>
<td>{{.ClientID}}</td>
<td class="name">{{.ClientName}}</td>
<td>{{.InvoiceCount}}</td>
<td>{{money .Subtotal}}</td>
<td>{{money .TaxTotal}}</td>
<td>{{money .Total}}</td>
</tr>
{{end}}
<tr class="totals">
<td></td>
<td class="name">{{.Totals.ClientName}}</td>
<td>{{.Totals.InvoiceCount}}</td>
<td>{{money .Totals.Subtotal}}</td>
<td>{{money .Totals.TaxTotal}}</td>
<td>{{money .Totals.Total}}</td>
</tr>
</table>
<table class="tva">
<tr><td>TVA deductible (est.)</td><td>{{money .TVADeductible}}</td></tr>
<tr><td>TVA due (est.)</td><td>{{money .TVADue}}</td></tr>
<tr><td>Generated</td><td>{{.GeneratedAt.Format "2006-01-02 15:04:05"}}</td></tr>
</table>
</body>
</html>`))

// InvoiceDocument bundles the data rendered onto an invoice PDF.
type InvoiceDocument struct {
	Invoice    *invoices.Invoice
	ClientName string
}

// RenderInvoiceHTML produces the printable HTML for a final invoice.
func RenderInvoiceHTML(doc InvoiceDocument) (string, error) {
	if doc.Invoice == nil {
		return "", fmt.Errorf("render invoice: nil invoice")
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render invoice %s: %w", doc.Invoice.Number, err)
	}
	return buf.String(), nil
}

// RenderEtat104HTML produces the printable HTML for a monthly report.
func RenderEtat104HTML(rep reports.Etat104Report) (string, error) {
	var buf bytes.Buffer
	if err := etat104Template.Execute(&buf, rep); err != nil {
		return "", fmt.Errorf("render etat 104 %04d-%02d: %w", rep.Year, rep.Month, err)
	}
	return buf.String(), nil
}

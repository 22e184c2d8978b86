package reports

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakturo/fakturo/internal/invoices"
)

func finalInvoice(clientID int64, clientName string, issue time.Time, subtotal, tax int64) invoices.WithDetails {
	return invoices.WithDetails{
		Invoice: invoices.Invoice{
			ClientID:  clientID,
			IssueDate: issue,
			Status:    invoices.StatusUnpaid,
			Subtotal:  decimal.NewFromInt(subtotal),
			TaxTotal:  decimal.NewFromInt(tax),
			Total:     decimal.NewFromInt(subtotal + tax),
		},
		ClientName: clientName,
	}
}

func TestBuildEtat104GroupsByClient(t *testing.T) {
	march := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	source := []invoices.WithDetails{
		finalInvoice(2, "Beta SPA", march, 500, 95),
		finalInvoice(1, "Acme SARL", march, 1000, 190),
		finalInvoice(1, "Acme SARL", march.AddDate(0, 0, 10), 2000, 380),
	}

	report := BuildEtat104(source, 2025, time.March, time.Now())

	require.Len(t, report.Rows, 2)
	// Ordered by client id.
	assert.Equal(t, int64(1), report.Rows[0].ClientID)
	assert.Equal(t, int64(2), report.Rows[1].ClientID)

	// Same client in the same month collapses into one row.
	acme := report.Rows[0]
	assert.Equal(t, 2, acme.InvoiceCount)
	assert.True(t, acme.Subtotal.Equal(decimal.NewFromInt(3000)), "subtotal %s", acme.Subtotal)
	assert.True(t, acme.TaxTotal.Equal(decimal.NewFromInt(570)), "tax total %s", acme.TaxTotal)
	assert.True(t, acme.Total.Equal(decimal.NewFromInt(3570)), "total %s", acme.Total)

	assert.Equal(t, 3, report.Totals.InvoiceCount)
	assert.True(t, report.Totals.Subtotal.Equal(decimal.NewFromInt(3500)))
	assert.True(t, report.Totals.TaxTotal.Equal(decimal.NewFromInt(665)))
}

func TestBuildEtat104ExcludesOtherPeriods(t *testing.T) {
	source := []invoices.WithDetails{
		finalInvoice(1, "Acme SARL", time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), 1000, 190),
		finalInvoice(1, "Acme SARL", time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), 700, 133),
		finalInvoice(1, "Acme SARL", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), 400, 76),
	}

	report := BuildEtat104(source, 2025, time.March, time.Now())

	require.Len(t, report.Rows, 1)
	assert.Equal(t, 1, report.Rows[0].InvoiceCount)
	assert.True(t, report.Rows[0].Subtotal.Equal(decimal.NewFromInt(1000)))
}

func TestBuildEtat104TVASplit(t *testing.T) {
	source := []invoices.WithDetails{
		finalInvoice(1, "Acme SARL", time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), 1000, 190),
	}

	report := BuildEtat104(source, 2025, time.March, time.Now())

	assert.True(t, report.TVADeductible.Equal(decimal.NewFromInt(57)), "deductible %s", report.TVADeductible)
	assert.True(t, report.TVADue.Equal(decimal.NewFromInt(133)), "due %s", report.TVADue)
}

func TestBuildEtat104EmptyMonth(t *testing.T) {
	report := BuildEtat104(nil, 2025, time.January, time.Now())

	assert.Empty(t, report.Rows)
	assert.Equal(t, 0, report.Totals.InvoiceCount)
	assert.True(t, report.Totals.Total.IsZero())
}

func TestWriteEtat104CSV(t *testing.T) {
	source := []invoices.WithDetails{
		finalInvoice(1, "Acme SARL", time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), 1000, 190),
		finalInvoice(2, "Beta SPA", time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC), 500, 95),
	}
	report := BuildEtat104(source, 2025, time.March, time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, WriteEtat104CSV(&buf, report))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Report: Etat 104 | Period: 2025-03\r\n"))
	assert.Contains(t, out, "Client ID,Client Name,Invoices,Subtotal,Tax Total,Total\r\n")
	assert.Contains(t, out, "1,Acme SARL,1,1000.00,190.00,1190.00\r\n")
	assert.Contains(t, out, "2,Beta SPA,1,500.00,95.00,595.00\r\n")
	assert.Contains(t, out, "TOTAL,2,1500.00,285.00,1785.00\r\n")
	assert.Contains(t, out, "TVA deductible")
	assert.Contains(t, out, "85.50")
	assert.Contains(t, out, "199.50")
}

// Package reports builds monthly turnover summaries from final invoices.
package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/invoices"
)

// Simulated TVA split applied to the aggregated tax total. Placeholder
// ratios pending the real fiscal rule.
var (
	tvaDeductibleRatio = decimal.NewFromFloat(0.30)
	tvaDueRatio        = decimal.NewFromFloat(0.70)
)

// Etat104Row summarises one client's invoices for the period.
type Etat104Row struct {
	ClientID     int64           `json:"client_id"`
	ClientName   string          `json:"client_name"`
	InvoiceCount int             `json:"invoice_count"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxTotal     decimal.Decimal `json:"tax_total"`
	Total        decimal.Decimal `json:"total"`
}

// Etat104Report is the monthly turnover declaration.
type Etat104Report struct {
	Year          int             `json:"year"`
	Month         time.Month      `json:"month"`
	Rows          []Etat104Row    `json:"rows"`
	Totals        Etat104Row      `json:"totals"`
	TVADeductible decimal.Decimal `json:"tva_deductible"`
	TVADue        decimal.Decimal `json:"tva_due"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// BuildEtat104 filters the given invoices to the requested period, groups
// them by client and appends a totals row. Deterministic for a given input
// set: rows are ordered by client id.
func BuildEtat104(source []invoices.WithDetails, year int, month time.Month, now time.Time) Etat104Report {
	byClient := make(map[int64]*Etat104Row)
	for _, inv := range source {
		if inv.IssueDate.Year() != year || inv.IssueDate.Month() != month {
			continue
		}
		row, ok := byClient[inv.ClientID]
		if !ok {
			row = &Etat104Row{ClientID: inv.ClientID, ClientName: inv.ClientName}
			byClient[inv.ClientID] = row
		}
		row.InvoiceCount++
		row.Subtotal = row.Subtotal.Add(inv.Subtotal)
		row.TaxTotal = row.TaxTotal.Add(inv.TaxTotal)
		row.Total = row.Total.Add(inv.Total)
	}

	rows := make([]Etat104Row, 0, len(byClient))
	for _, row := range byClient {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ClientID < rows[j].ClientID })

	totals := Etat104Row{ClientName: "TOTAL"}
	for _, row := range rows {
		totals.InvoiceCount += row.InvoiceCount
		totals.Subtotal = totals.Subtotal.Add(row.Subtotal)
		totals.TaxTotal = totals.TaxTotal.Add(row.TaxTotal)
		totals.Total = totals.Total.Add(row.Total)
	}

	return Etat104Report{
		Year:          year,
		Month:         month,
		Rows:          rows,
		Totals:        totals,
		TVADeductible: totals.TaxTotal.Mul(tvaDeductibleRatio).Round(2),
		TVADue:        totals.TaxTotal.Mul(tvaDueRatio).Round(2),
		GeneratedAt:   now,
	}
}

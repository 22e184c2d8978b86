// Package invoices implements final invoices and the proforma conversion
// workflow.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/money"
	"github.com/fakturo/fakturo/internal/proformas"
)

// Status represents the lifecycle of a final invoice.
type Status string

const (
	StatusUnpaid Status = "UNPAID"
	StatusPaid   Status = "PAID"

	// Cancelled and credited invoices exist in historical data. No guarded
	// transition reaches them; they only block further payment.
	StatusCancelled Status = "CANCELLED"
	StatusCredited  Status = "CREDITED"
)

// IsValid checks if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusUnpaid, StatusPaid, StatusCancelled, StatusCredited:
		return true
	default:
		return false
	}
}

// CanMarkPaid reports whether payment may still be recorded.
func (s Status) CanMarkPaid() bool {
	return s == StatusUnpaid
}

// Invoice represents a binding, payable invoice. When derived from a
// proforma, ProformaID points back at the source and the proforma's
// final_invoice_id points here.
type Invoice struct {
	ID          int64             `json:"id" db:"id"`
	Number      string            `json:"number" db:"number"`
	ClientID    int64             `json:"client_id" db:"client_id"`
	ProformaID  *int64            `json:"proforma_id,omitempty" db:"proforma_id"`
	IssueDate   time.Time         `json:"issue_date" db:"issue_date"`
	DueDate     time.Time         `json:"due_date" db:"due_date"`
	Status      Status            `json:"status" db:"status"`
	PaymentType money.PaymentType `json:"payment_type" db:"payment_type"`
	Notes       *string           `json:"notes,omitempty" db:"notes"`
	Subtotal    decimal.Decimal   `json:"subtotal" db:"subtotal"`
	TaxTotal    decimal.Decimal   `json:"tax_total" db:"tax_total"`
	StampTax    decimal.Decimal   `json:"stamp_tax" db:"stamp_tax"`
	Total       decimal.Decimal   `json:"total" db:"total"`
	PaidAt      *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
	CreatedBy   int64             `json:"created_by" db:"created_by"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
	Lines       []proformas.Line  `json:"lines,omitempty" db:"-"`
}

// WithDetails joins listing metadata onto an invoice.
type WithDetails struct {
	Invoice
	ClientName     string  `json:"client_name" db:"client_name"`
	ProformaNumber *string `json:"proforma_number,omitempty" db:"proforma_number"`
}

// ConversionResult carries both sides of a completed conversion.
type ConversionResult struct {
	Proforma *proformas.Proforma `json:"proforma"`
	Invoice  *Invoice            `json:"invoice"`
}

// Package proformas implements proforma invoices and their approval lifecycle.
package proformas

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/money"
)

// Status represents the lifecycle of a proforma invoice.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// IsValid checks if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// CanEdit reports whether the document may still be modified.
func (s Status) CanEdit() bool {
	return s == StatusDraft
}

// CanSend reports whether the document may be sent to the client.
func (s Status) CanSend() bool {
	return s == StatusDraft
}

// CanDecide reports whether an approval or rejection may be recorded.
func (s Status) CanDecide() bool {
	return s == StatusSent
}

// CanDelete reports whether the document may be removed. Approved proformas
// are never deleted.
func (s Status) CanDelete() bool {
	return s == StatusDraft || s == StatusSent || s == StatusRejected
}

// Proforma represents a preliminary invoice awaiting client approval.
type Proforma struct {
	ID             int64             `json:"id" db:"id"`
	Number         string            `json:"number" db:"number"`
	ClientID       int64             `json:"client_id" db:"client_id"`
	IssueDate      time.Time         `json:"issue_date" db:"issue_date"`
	DueDate        time.Time         `json:"due_date" db:"due_date"`
	Status         Status            `json:"status" db:"status"`
	PaymentType    money.PaymentType `json:"payment_type" db:"payment_type"`
	Notes          *string           `json:"notes,omitempty" db:"notes"`
	Subtotal       decimal.Decimal   `json:"subtotal" db:"subtotal"`
	TaxTotal       decimal.Decimal   `json:"tax_total" db:"tax_total"`
	StampTax       decimal.Decimal   `json:"stamp_tax" db:"stamp_tax"`
	Total          decimal.Decimal   `json:"total" db:"total"`
	FinalInvoiceID *int64            `json:"final_invoice_id,omitempty" db:"final_invoice_id"`
	CreatedBy      int64             `json:"created_by" db:"created_by"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
	Lines          []Line            `json:"lines,omitempty" db:"-"`
}

// Converted reports whether a final invoice was already derived.
func (p *Proforma) Converted() bool {
	return p.FinalInvoiceID != nil
}

// CanConvert reports whether the proforma is eligible for conversion.
func (p *Proforma) CanConvert() bool {
	return p.Status == StatusApproved && !p.Converted()
}

// Line represents one position on a proforma or the final invoice derived
// from it. Amounts are snapshots taken at line creation.
type Line struct {
	ID          int64           `json:"id" db:"id"`
	ProformaID  *int64          `json:"proforma_id,omitempty" db:"proforma_id"`
	InvoiceID   *int64          `json:"invoice_id,omitempty" db:"invoice_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	Description *string         `json:"description,omitempty" db:"description"`
	Quantity    int64           `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	DiscountPct decimal.Decimal `json:"discount_pct" db:"discount_pct"`
	TotalExcl   decimal.Decimal `json:"total_excl" db:"total_excl"`
	TaxAmount   decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	Total       decimal.Decimal `json:"total" db:"total"`
	LineOrder   int             `json:"line_order" db:"line_order"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// WithDetails includes joined data for display.
type WithDetails struct {
	Proforma
	ClientName         string  `json:"client_name" db:"client_name"`
	FinalInvoiceNumber *string `json:"final_invoice_number,omitempty" db:"final_invoice_number"`
}

package proformas

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/money"
)

// CreateProformaRequest carries proforma creation input. Unit price and tax
// rate are copied from the product catalog at creation time.
type CreateProformaRequest struct {
	ClientID    int64             `json:"client_id" validate:"required,gt=0"`
	IssueDate   time.Time         `json:"issue_date" validate:"required"`
	DueDate     time.Time         `json:"due_date" validate:"required"`
	PaymentType money.PaymentType `json:"payment_type" validate:"required"`
	Notes       *string           `json:"notes,omitempty"`
	Lines       []LineRequest     `json:"lines" validate:"required,min=1,dive"`
}

// LineRequest describes one requested position.
type LineRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	Description *string         `json:"description,omitempty"`
	Quantity    int64           `json:"quantity" validate:"required,gte=1"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	LineOrder   int             `json:"line_order" validate:"gte=0"`
}

// UpdateProformaRequest carries partial header updates plus optional full
// line replacement. Only DRAFT proformas accept updates.
type UpdateProformaRequest struct {
	IssueDate   *time.Time         `json:"issue_date,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	PaymentType *money.PaymentType `json:"payment_type,omitempty"`
	Notes       *string            `json:"notes,omitempty"`
	Lines       *[]LineRequest     `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// ListProformasRequest filters proforma listings.
type ListProformasRequest struct {
	ClientID *int64     `json:"client_id,omitempty"`
	Status   *Status    `json:"status,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Limit    int        `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int        `json:"offset" validate:"gte=0"`
}

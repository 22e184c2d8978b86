package invoices

import "time"

// ListInvoicesRequest filters invoice listings.
type ListInvoicesRequest struct {
	ClientID *int64     `json:"client_id,omitempty"`
	Status   *Status    `json:"status,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Limit    int        `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int        `json:"offset" validate:"gte=0"`
}

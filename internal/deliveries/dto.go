package deliveries

import "time"

// CreateDeliveryNoteRequest carries delivery note creation input.
type CreateDeliveryNoteRequest struct {
	ClientID       int64         `json:"client_id" validate:"required,gt=0"`
	FinalInvoiceID *int64        `json:"final_invoice_id,omitempty" validate:"omitempty,gt=0"`
	IssueDate      time.Time     `json:"issue_date" validate:"required"`
	DriverName     *string       `json:"driver_name,omitempty"`
	VehicleReg     *string       `json:"vehicle_reg,omitempty"`
	TrackingRef    *string       `json:"tracking_ref,omitempty"`
	Notes          *string       `json:"notes,omitempty"`
	Lines          []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// LineRequest describes one shipped position.
type LineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	Description *string `json:"description,omitempty"`
	Quantity    int64   `json:"quantity" validate:"required,gte=1"`
	LineOrder   int     `json:"line_order" validate:"gte=0"`
}

// UpdateDeliveryNoteRequest carries partial header updates plus optional full
// line replacement. Only PENDING notes accept updates.
type UpdateDeliveryNoteRequest struct {
	IssueDate   *time.Time     `json:"issue_date,omitempty"`
	DriverName  *string        `json:"driver_name,omitempty"`
	VehicleReg  *string        `json:"vehicle_reg,omitempty"`
	TrackingRef *string        `json:"tracking_ref,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
	Lines       *[]LineRequest `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// ListDeliveryNotesRequest filters delivery note listings.
type ListDeliveryNotesRequest struct {
	ClientID *int64  `json:"client_id,omitempty"`
	Status   *Status `json:"status,omitempty"`
	Limit    int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int     `json:"offset" validate:"gte=0"`
}

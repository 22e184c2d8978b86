// Package deliveries implements delivery notes accompanying shipped goods.
package deliveries

import "time"

// Status represents the lifecycle of a delivery note.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanEdit reports whether the note may still be modified.
func (s Status) CanEdit() bool {
	return s == StatusPending
}

// CanMarkDelivered reports whether goods receipt may be recorded.
func (s Status) CanMarkDelivered() bool {
	return s == StatusPending
}

// CanCancel reports whether the shipment may still be called off.
func (s Status) CanCancel() bool {
	return s == StatusPending
}

// DeliveryNote accompanies shipped goods. Lines carry quantities only;
// pricing stays on the invoice side.
type DeliveryNote struct {
	ID             int64      `json:"id" db:"id"`
	Number         string     `json:"number" db:"number"`
	ClientID       int64      `json:"client_id" db:"client_id"`
	FinalInvoiceID *int64     `json:"final_invoice_id,omitempty" db:"final_invoice_id"`
	IssueDate      time.Time  `json:"issue_date" db:"issue_date"`
	DeliveryDate   *time.Time `json:"delivery_date,omitempty" db:"delivery_date"`
	Status         Status     `json:"status" db:"status"`
	DriverName     *string    `json:"driver_name,omitempty" db:"driver_name"`
	VehicleReg     *string    `json:"vehicle_reg,omitempty" db:"vehicle_reg"`
	TrackingRef    *string    `json:"tracking_ref,omitempty" db:"tracking_ref"`
	Notes          *string    `json:"notes,omitempty" db:"notes"`
	CreatedBy      int64      `json:"created_by" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	Lines          []Line     `json:"lines,omitempty" db:"-"`
}

// Line is one shipped position.
type Line struct {
	ID             int64     `json:"id" db:"id"`
	DeliveryNoteID int64     `json:"delivery_note_id" db:"delivery_note_id"`
	ProductID      int64     `json:"product_id" db:"product_id"`
	Description    *string   `json:"description,omitempty" db:"description"`
	Quantity       int64     `json:"quantity" db:"quantity"`
	LineOrder      int       `json:"line_order" db:"line_order"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// WithDetails joins listing metadata onto a delivery note.
type WithDetails struct {
	DeliveryNote
	ClientName    string  `json:"client_name" db:"client_name"`
	InvoiceNumber *string `json:"invoice_number,omitempty" db:"invoice_number"`
}
